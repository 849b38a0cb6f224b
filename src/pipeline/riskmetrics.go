package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/repository"
)

// haltLossThresholdPct is the cumulative loss at which new entries stop.
const haltLossThresholdPct = 25.0

type tradeAggregates interface {
	SumExecutedAmount(ctx context.Context, userID uint, action string) (float64, error)
	GetRealizedPnlStats(ctx context.Context, userID uint) (repository.RealizedPnlStats, error)
}

type investedSource interface {
	TotalInvested(ctx context.Context, userID uint) (float64, error)
}

// RiskMetrics derives the portfolio risk snapshot from the trade history:
// cash is initial capital minus executed buys plus executed sells, and the
// win/loss profile comes from realized pnl on closed trades.
type RiskMetrics struct {
	logger    *logrus.Entry
	trades    tradeAggregates
	positions investedSource
	cfg       config.Config
}

func NewRiskMetrics(
	logger *logrus.Entry,
	trades tradeAggregates,
	positions investedSource,
	cfg config.Config,
) *RiskMetrics {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RiskMetrics{logger: logger, trades: trades, positions: positions, cfg: cfg}
}

func (r *RiskMetrics) Snapshot(ctx context.Context, userID uint) (model.RiskMetricsSnapshot, error) {
	buys, err := r.trades.SumExecutedAmount(ctx, userID, model.OrderActionBuy)
	if err != nil {
		return model.RiskMetricsSnapshot{}, fmt.Errorf("summing buys: %w", err)
	}
	sells, err := r.trades.SumExecutedAmount(ctx, userID, model.OrderActionSell)
	if err != nil {
		return model.RiskMetricsSnapshot{}, fmt.Errorf("summing sells: %w", err)
	}
	invested, err := r.positions.TotalInvested(ctx, userID)
	if err != nil {
		return model.RiskMetricsSnapshot{}, fmt.Errorf("summing invested: %w", err)
	}

	cash := r.cfg.InitialCapital - buys + sells
	equity := cash + invested

	// Without an equity-curve history the initial capital is the best
	// available peak, so drawdown and cumulative loss coincide while the
	// account is under water.
	lossPct := 0.0
	if r.cfg.InitialCapital > 0 && equity < r.cfg.InitialCapital {
		lossPct = (r.cfg.InitialCapital - equity) / r.cfg.InitialCapital * 100
	}

	snapshot := model.RiskMetricsSnapshot{
		CashBalance:             cash,
		CurrentDrawdownPct:      lossPct,
		TotalLossFromInitialPct: lossPct,
	}

	if lossPct >= haltLossThresholdPct {
		snapshot.IsTradingHalted = true
		snapshot.TradingHaltReason = fmt.Sprintf("cumulative loss %.1f%% reached halt threshold %.0f%%",
			lossPct, haltLossThresholdPct)
	}

	stats, err := r.trades.GetRealizedPnlStats(ctx, userID)
	if err != nil {
		return model.RiskMetricsSnapshot{}, fmt.Errorf("aggregating pnl stats: %w", err)
	}
	if closed := stats.Wins + stats.Losses; closed > 0 {
		snapshot.WinRate = float64(stats.Wins) / float64(closed)
	}
	// The sizer only consumes the win/loss ratio, so the averages are
	// carried as realized amounts rather than percentages.
	snapshot.AvgWinPct = stats.AvgWinPnl
	snapshot.AvgLossPct = stats.AvgLossPnl

	r.logger.WithFields(logrus.Fields{
		"cash":     cash,
		"invested": invested,
		"equity":   equity,
		"loss_pct": lossPct,
		"halted":   snapshot.IsTradingHalted,
	}).Debug("risk snapshot computed")

	return snapshot, nil
}
