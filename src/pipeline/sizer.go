package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/risk"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/signal"
)

const (
	// Half-Kelly: full Kelly is too aggressive for single-name equity bets.
	kellyScale   = 0.5
	maxKellyFrac = 0.25
)

// Sizer implements signal.PositionSizer with two methods: fixed-fractional
// risk sizing (risk a fixed percent of the portfolio per trade, measured to
// the stop) and half-Kelly sizing from the historical win/loss profile.
// Either way the position is capped at the configured maximum size and then
// scaled by the market-session multiplier.
type Sizer struct {
	cfg     config.Config
	session risk.SessionSizeConfig
	now     func() time.Time
}

func NewSizer(cfg config.Config) *Sizer {
	return &Sizer{
		cfg:     cfg,
		session: risk.DefaultSessionSizeConfig(),
		now:     time.Now,
	}
}

func (s *Sizer) CalculatePositionSize(_ context.Context, req signal.SizingRequest) (signal.SizingResult, error) {
	if req.EntryPrice <= 0 {
		return signal.SizingResult{}, fmt.Errorf("sizer: entry price must be positive, got %v", req.EntryPrice)
	}
	if req.PortfolioValue <= 0 {
		return signal.SizingResult{}, nil
	}

	maxValue := req.PortfolioValue * s.cfg.MaxPositionSizePct / 100

	if req.Method == "kelly" {
		if fraction, ok := kellyFraction(req); ok {
			value := s.sessionScaled(math.Min(req.PortfolioValue*fraction, maxValue))
			return signal.SizingResult{
				Shares:        int64(value / req.EntryPrice),
				KellyFraction: fraction,
			}, nil
		}
		// Not enough history or a negative edge: fall through to
		// fixed-fractional sizing.
	}

	value := maxValue
	if req.StopLossPrice > 0 && req.StopLossPrice < req.EntryPrice {
		riskBudget := req.PortfolioValue * s.cfg.RiskTolerancePct / 100
		perShareRisk := req.EntryPrice - req.StopLossPrice
		value = math.Min(riskBudget/perShareRisk*req.EntryPrice, maxValue)
	}

	return signal.SizingResult{Shares: int64(s.sessionScaled(value) / req.EntryPrice)}, nil
}

// sessionScaled applies the session multiplier to the computed position
// value: full size in the regular session, reduced in the closing auction and
// after hours. A zero multiplier means the session is closed; entry gating
// for closed sessions lives in the loop runner, so a manually triggered run
// outside market hours still sizes at full scale for the next session.
func (s *Sizer) sessionScaled(value float64) float64 {
	scaled, _ := risk.CalculateSizeBySession(decimal.NewFromFloat(value), s.now(), s.session)
	if f, _ := scaled.Float64(); f > 0 {
		return f
	}
	return value
}

// kellyFraction computes the half-Kelly fraction f = W - (1-W)/R where R is
// the win/loss payoff ratio. Reports false when there is no usable edge.
func kellyFraction(req signal.SizingRequest) (float64, bool) {
	if req.WinRate <= 0 || req.WinRate >= 1 || req.AvgWinPct <= 0 || req.AvgLossPct >= 0 {
		return 0, false
	}

	payoffRatio := req.AvgWinPct / math.Abs(req.AvgLossPct)
	full := req.WinRate - (1-req.WinRate)/payoffRatio
	if full <= 0 {
		return 0, false
	}

	return math.Min(full*kellyScale, maxKellyFrac), true
}
