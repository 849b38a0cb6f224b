package signal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

// GenerateExitSignals combines the external position monitor's stop-level
// triggers with an independent deteriorating-fundamentals scan over every
// open position. Missing score data for a position is a silent skip.
func (g *Generator) GenerateExitSignals(ctx context.Context) ([]model.TradingSignal, error) {
	var signals []model.TradingSignal

	triggers, err := g.monitor.MonitorPositions(ctx, g.cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("monitoring positions: %w", err)
	}

	for _, trigger := range triggers {
		signals = append(signals, g.convertExitTrigger(trigger))
	}

	deteriorated, err := g.deterioratingFundamentals(ctx)
	if err != nil {
		return nil, err
	}
	signals = append(signals, deteriorated...)

	g.logger.WithFields(logrus.Fields{
		"monitor_triggers": len(triggers),
		"deteriorated":     len(deteriorated),
		"total":            len(signals),
	}).Info("exit signal batch complete")

	return signals, nil
}

// convertExitTrigger maps a monitor trigger 1:1 into an exit signal.
// Critical urgency forces a market order at very-strong strength, high
// urgency a market order at strong; anything else becomes a limit order at
// the trigger price.
func (g *Generator) convertExitTrigger(trigger ExitTrigger) model.TradingSignal {
	sig := model.TradingSignal{
		SignalID:          uuid.NewString(),
		Ticker:            trigger.Ticker,
		Type:              model.SignalTypeExitSell,
		Urgency:           trigger.Urgency,
		Timestamp:         g.now(),
		CurrentPrice:      trigger.CurrentPrice,
		RecommendedShares: trigger.Quantity,
		PositionValue:     float64(trigger.Quantity) * trigger.CurrentPrice,
		Reasons:           append([]string{trigger.Reason}, trigger.TechnicalSignals...),
		IsValid:           true,
	}

	switch trigger.Urgency {
	case model.UrgencyCritical:
		sig.OrderType = model.OrderTypeMarket
		sig.Strength = model.StrengthVeryStrong
	case model.UrgencyHigh:
		sig.OrderType = model.OrderTypeMarket
		sig.Strength = model.StrengthStrong
	default:
		sig.OrderType = model.OrderTypeLimit
		limit := trigger.TriggerPrice
		sig.LimitPrice = &limit
		sig.Strength = model.StrengthModerate
	}

	return sig
}

// deterioratingFundamentals scans every open position for a composite score
// that fell more than 20 points over ~30 days, a quality score below 40, or
// a growth score below 30. Any single condition is enough; all triggering
// conditions are reported as reasons on a full-quantity market exit.
func (g *Generator) deterioratingFundamentals(ctx context.Context) ([]model.TradingSignal, error) {
	positions, err := g.positions.FindAllByUser(ctx, g.cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}

	var signals []model.TradingSignal

	for _, position := range positions {
		select {
		case <-ctx.Done():
			return signals, fmt.Errorf("exit scan canceled: %w", ctx.Err())
		default:
		}

		latest, err := g.market.LatestCompositeScore(ctx, position.Ticker)
		if err != nil || latest == nil {
			g.logger.WithField("ticker", position.Ticker).
				Debug("no composite score for held position, skipping fundamentals scan")
			continue
		}

		var reasons []string

		asOf := g.now().AddDate(0, 0, -fundamentalsLookbackDays)
		prior, err := g.market.CompositeScoreAsOf(ctx, position.Ticker, asOf)
		if err == nil && prior != nil {
			drop := prior.CompositeScore - latest.CompositeScore
			if drop > compositeDropThreshold {
				reasons = append(reasons, fmt.Sprintf(
					"composite score dropped %.1f points over %d days (%.1f -> %.1f)",
					drop, fundamentalsLookbackDays, prior.CompositeScore, latest.CompositeScore))
			}
		}

		if latest.QualityScore < minQualityScore {
			reasons = append(reasons, fmt.Sprintf("quality score %.1f below %.0f", latest.QualityScore, minQualityScore))
		}
		if latest.GrowthScore < minGrowthScore {
			reasons = append(reasons, fmt.Sprintf("growth score %.1f below %.0f", latest.GrowthScore, minGrowthScore))
		}

		if len(reasons) == 0 {
			continue
		}

		currentPrice := position.CurrentPrice
		if price, err := g.market.LatestPrice(ctx, position.Ticker); err == nil && price != nil {
			currentPrice = price.Close
		}

		signals = append(signals, model.TradingSignal{
			SignalID:          uuid.NewString(),
			Ticker:            position.Ticker,
			Sector:            position.Sector,
			Type:              model.SignalTypeExitSell,
			Strength:          model.StrengthStrong,
			Urgency:           model.UrgencyHigh,
			Timestamp:         g.now(),
			CurrentPrice:      currentPrice,
			RecommendedShares: position.Quantity,
			PositionValue:     float64(position.Quantity) * currentPrice,
			OrderType:         model.OrderTypeMarket,
			Reasons:           reasons,
			IsValid:           true,
		})
	}

	return signals, nil
}
