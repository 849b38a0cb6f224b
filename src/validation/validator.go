package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

const (
	minRiskReward   = 1.5
	maxDrawdownPct  = 25.0
	maxTotalLossPct = 25.0
)

// RiskMetricsProvider supplies the portfolio risk snapshot consulted by the
// capacity and risk-limit gates.
type RiskMetricsProvider interface {
	Snapshot(ctx context.Context, userID uint) (model.RiskMetricsSnapshot, error)
}

// PositionBook is the slice of the ledger the concentration gates read.
type PositionBook interface {
	CountByUser(ctx context.Context, userID uint) (int64, error)
	TotalInvested(ctx context.Context, userID uint) (float64, error)
	TotalInvestedBySector(ctx context.Context, userID uint, sector string) (float64, error)
}

// MarketData is the read side the recency gate consults.
type MarketData interface {
	LatestPrice(ctx context.Context, ticker string) (*model.Price, error)
}

// Summary aggregates one validation batch for reporting: totals plus a
// histogram of failure reasons.
type Summary struct {
	Total         int            `json:"total"`
	Valid         int            `json:"valid"`
	Invalid       int            `json:"invalid"`
	FailureCounts map[string]int `json:"failure_counts,omitempty"`
}

// Validator is a sequential AND-gate over a signal. Every gate runs
// regardless of earlier failures so a rejected signal reports everything
// wrong with it, not just the first problem.
type Validator struct {
	logger    *logrus.Entry
	market    MarketData
	positions PositionBook
	risk      RiskMetricsProvider
	cfg       config.Config
	now       func() time.Time
}

func NewValidator(
	logger *logrus.Entry,
	market MarketData,
	positions PositionBook,
	risk RiskMetricsProvider,
	cfg config.Config,
) *Validator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Validator{
		logger:    logger,
		market:    market,
		positions: positions,
		risk:      risk,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Validate runs every gate against the signal and returns the accumulated
// result. The error return is reserved for infrastructure failures
// (repository errors); a gate rejection is never an error.
func (v *Validator) Validate(ctx context.Context, sig *model.TradingSignal) (model.ValidationResult, error) {
	var reasons []string

	isEntry := sig.Type == model.SignalTypeEntryBuy

	reasons = append(reasons, v.checkDataQuality(sig, isEntry)...)

	recency, err := v.checkDataRecency(ctx, sig)
	if err != nil {
		return model.ValidationResult{}, err
	}
	reasons = append(reasons, recency...)

	snapshot, err := v.risk.Snapshot(ctx, v.cfg.UserID)
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("fetching risk snapshot: %w", err)
	}

	if isEntry {
		limits, err := v.checkPositionLimits(ctx)
		if err != nil {
			return model.ValidationResult{}, err
		}
		reasons = append(reasons, limits...)

		concentration, err := v.checkConcentration(ctx, sig, snapshot)
		if err != nil {
			return model.ValidationResult{}, err
		}
		reasons = append(reasons, concentration...)

		reasons = append(reasons, v.checkCapacity(sig, snapshot)...)
		reasons = append(reasons, v.checkRiskLimits(snapshot)...)
	}

	reasons = append(reasons, v.checkSignalStrength(sig, isEntry)...)

	result := model.ValidationResult{
		Valid:   len(reasons) == 0,
		Reasons: reasons,
	}

	if !result.Valid {
		v.logger.WithFields(logrus.Fields{
			"signal_id": sig.SignalID,
			"ticker":    sig.Ticker,
			"reasons":   reasons,
		}).Debug("signal rejected")
	}

	return result, nil
}

// ValidateBatch validates every signal, writes the outcome back onto each
// one for the audit report, and returns only the passers plus a summary.
// An infrastructure error on one signal marks it invalid and moves on.
func (v *Validator) ValidateBatch(ctx context.Context, signals []model.TradingSignal) ([]model.TradingSignal, Summary) {
	summary := Summary{
		Total:         len(signals),
		FailureCounts: make(map[string]int),
	}

	var passed []model.TradingSignal

	for i := range signals {
		sig := &signals[i]

		// The generator can invalidate a signal before it ever reaches the
		// gates (oversized, unaffordable, duplicate holding). Those stay
		// rejected.
		if !sig.IsValid && len(sig.ValidationWarnings) > 0 {
			summary.Invalid++
			for _, reason := range sig.ValidationWarnings {
				summary.FailureCounts[reason]++
			}
			continue
		}

		result, err := v.Validate(ctx, sig)
		if err != nil {
			v.logger.WithError(err).WithField("ticker", sig.Ticker).
				Error("validation failed, rejecting signal")
			result = model.ValidationResult{
				Valid:   false,
				Reasons: []string{fmt.Sprintf("validation error: %v", err)},
			}
		}

		sig.IsValid = result.Valid
		sig.ValidationWarnings = result.Reasons

		if result.Valid {
			summary.Valid++
			passed = append(passed, *sig)
			continue
		}

		summary.Invalid++
		for _, reason := range result.Reasons {
			summary.FailureCounts[reason]++
		}
	}

	v.logger.WithFields(logrus.Fields{
		"total":   summary.Total,
		"valid":   summary.Valid,
		"invalid": summary.Invalid,
	}).Info("validation batch complete")

	return passed, summary
}

// checkDataQuality requires the metric snapshots only on entries: exit
// signals are produced from held positions and must never be blocked from
// selling because a collector fell behind.
func (v *Validator) checkDataQuality(sig *model.TradingSignal, isEntry bool) []string {
	var reasons []string

	if isEntry && len(sig.Fundamentals) == 0 {
		reasons = append(reasons, "missing fundamental metrics")
	}
	if isEntry && len(sig.Technicals) == 0 {
		reasons = append(reasons, "missing technical metrics")
	}
	if sig.DataQualityScore != nil && *sig.DataQualityScore < v.cfg.MinDataQualityScore {
		reasons = append(reasons, fmt.Sprintf(
			"data quality score %.1f below minimum %.1f", *sig.DataQualityScore, v.cfg.MinDataQualityScore))
	}

	return reasons
}

func (v *Validator) checkDataRecency(ctx context.Context, sig *model.TradingSignal) ([]string, error) {
	price, err := v.market.LatestPrice(ctx, sig.Ticker)
	if err != nil {
		return nil, fmt.Errorf("fetching latest price for recency check: %w", err)
	}

	if price == nil {
		return []string{"no price data on record"}, nil
	}

	maxAge := time.Duration(v.cfg.RequireRecentDataHours) * time.Hour
	if age := v.now().Sub(price.Date); age > maxAge {
		return []string{fmt.Sprintf(
			"price data is %.0fh old, exceeds %dh limit", age.Hours(), v.cfg.RequireRecentDataHours)}, nil
	}

	return nil, nil
}

func (v *Validator) checkPositionLimits(ctx context.Context) ([]string, error) {
	count, err := v.positions.CountByUser(ctx, v.cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("counting open positions: %w", err)
	}

	if count >= int64(v.cfg.MaxPositions) {
		return []string{fmt.Sprintf("open position count %d at maximum %d", count, v.cfg.MaxPositions)}, nil
	}

	return nil, nil
}

func (v *Validator) checkConcentration(
	ctx context.Context,
	sig *model.TradingSignal,
	snapshot model.RiskMetricsSnapshot,
) ([]string, error) {

	var reasons []string

	invested, err := v.positions.TotalInvested(ctx, v.cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("summing invested amount: %w", err)
	}
	portfolioValue := snapshot.CashBalance + invested

	if sig.Sector != "" && portfolioValue > 0 {
		sectorValue, err := v.positions.TotalInvestedBySector(ctx, v.cfg.UserID, sig.Sector)
		if err != nil {
			return nil, fmt.Errorf("summing sector exposure: %w", err)
		}

		projectedPct := (sectorValue + sig.PositionValue) / portfolioValue * 100
		if projectedPct > v.cfg.MaxSectorConcentrationPct {
			reasons = append(reasons, fmt.Sprintf(
				"sector %s allocation would reach %.1f%%, limit %.1f%%",
				sig.Sector, projectedPct, v.cfg.MaxSectorConcentrationPct))
		}
	}

	if sig.PositionPct > v.cfg.MaxConcentrationPct {
		reasons = append(reasons, fmt.Sprintf(
			"position is %.1f%% of portfolio, limit %.1f%%", sig.PositionPct, v.cfg.MaxConcentrationPct))
	}

	return reasons, nil
}

func (v *Validator) checkCapacity(sig *model.TradingSignal, snapshot model.RiskMetricsSnapshot) []string {
	var reasons []string

	if snapshot.IsTradingHalted {
		reason := "trading halted"
		if snapshot.TradingHaltReason != "" {
			reason = fmt.Sprintf("trading halted: %s", snapshot.TradingHaltReason)
		}
		reasons = append(reasons, reason)
	}

	if sig.PositionValue > snapshot.CashBalance {
		reasons = append(reasons, fmt.Sprintf(
			"position value %.0f exceeds available cash %.0f", sig.PositionValue, snapshot.CashBalance))
	}

	return reasons
}

// checkRiskLimits rejects entries when the portfolio is already deep in
// drawdown. Exits are never blocked by this rule.
func (v *Validator) checkRiskLimits(snapshot model.RiskMetricsSnapshot) []string {
	var reasons []string

	if snapshot.CurrentDrawdownPct >= maxDrawdownPct {
		reasons = append(reasons, fmt.Sprintf(
			"portfolio drawdown %.1f%% at or above %.0f%%", snapshot.CurrentDrawdownPct, maxDrawdownPct))
	}
	if snapshot.TotalLossFromInitialPct >= maxTotalLossPct {
		reasons = append(reasons, fmt.Sprintf(
			"cumulative loss %.1f%% at or above %.0f%%", snapshot.TotalLossFromInitialPct, maxTotalLossPct))
	}

	return reasons
}

func (v *Validator) checkSignalStrength(sig *model.TradingSignal, isEntry bool) []string {
	var reasons []string

	if isEntry {
		if sig.Conviction == nil {
			reasons = append(reasons, "entry signal missing conviction score")
		} else if sig.Conviction.TotalScore < v.cfg.MinConvictionScore {
			reasons = append(reasons, fmt.Sprintf(
				"conviction score %.1f below minimum %.0f", sig.Conviction.TotalScore, v.cfg.MinConvictionScore))
		}
	}

	if sig.RiskRewardRatio > 0 && sig.RiskRewardRatio < minRiskReward {
		reasons = append(reasons, fmt.Sprintf(
			"risk/reward ratio %.2f below minimum %.1f", sig.RiskRewardRatio, minRiskReward))
	}

	return reasons
}
