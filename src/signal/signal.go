package signal

import (
	"context"
	"time"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

// PositionSizer is the external Kelly-style sizing engine. It returns a base
// share count later scaled by conviction.
type PositionSizer interface {
	CalculatePositionSize(ctx context.Context, req SizingRequest) (SizingResult, error)
}

type SizingRequest struct {
	PortfolioValue float64
	EntryPrice     float64
	StopLossPrice  float64
	Method         string
	WinRate        float64
	AvgWinPct      float64
	AvgLossPct     float64
}

type SizingResult struct {
	Shares        int64
	KellyFraction float64
}

// ExitTrigger is one stop-loss/take-profit/trailing-stop/emergency exit
// produced by the external position monitor.
type ExitTrigger struct {
	Ticker           string
	Quantity         int64
	CurrentPrice     float64
	TriggerPrice     float64
	Urgency          model.Urgency
	Reason           string
	TechnicalSignals []string
}

// PositionMonitor is the external stop-level scanning engine.
type PositionMonitor interface {
	MonitorPositions(ctx context.Context, userID uint) ([]ExitTrigger, error)
}

// RiskMetricsProvider supplies the current portfolio risk snapshot.
type RiskMetricsProvider interface {
	Snapshot(ctx context.Context, userID uint) (model.RiskMetricsSnapshot, error)
}

// MarketData is the read side this generator consumes. Implemented by
// repository.MarketDataRepository.
type MarketData interface {
	LatestPrice(ctx context.Context, ticker string) (*model.Price, error)
	LatestCompositeScore(ctx context.Context, ticker string) (*model.CompositeScore, error)
	CompositeScoreAsOf(ctx context.Context, ticker string, asOf time.Time) (*model.CompositeScore, error)
	LatestTechnical(ctx context.Context, ticker string) (*model.TechnicalSnapshot, error)
	LatestFundamental(ctx context.Context, ticker string) (*model.FundamentalSnapshot, error)
	PriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]model.Price, error)
}

// PositionBook is the slice of the position ledger the generator reads.
// Implemented by repository.PositionRepository.
type PositionBook interface {
	FindByUserAndTicker(ctx context.Context, userID uint, ticker string) (*model.Position, error)
	FindAllByUser(ctx context.Context, userID uint) ([]model.Position, error)
	TotalInvested(ctx context.Context, userID uint) (float64, error)
}

// BatchStats records how each candidate in a generation batch was handled.
// Skips are recorded per ticker with a reason so callers can inspect a batch
// outcome without grepping logs.
type BatchStats struct {
	Evaluated   int               `json:"evaluated"`
	Skipped     int               `json:"skipped"`
	Rejected    int               `json:"rejected"`
	Generated   int               `json:"generated"`
	SkipReasons map[string]string `json:"skip_reasons,omitempty"`
}

func newBatchStats() BatchStats {
	return BatchStats{SkipReasons: make(map[string]string)}
}

func (s *BatchStats) skip(ticker, reason string) {
	s.Skipped++
	s.SkipReasons[ticker] = reason
}

// EntryBatch is the result of one entry-generation run.
type EntryBatch struct {
	Signals []model.TradingSignal `json:"signals"`
	Stats   BatchStats            `json:"stats"`
}
