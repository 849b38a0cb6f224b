package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/execution"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/signal"
)

type positionLedger interface {
	FindAllByUser(ctx context.Context, userID uint) ([]model.Position, error)
	Update(ctx context.Context, position *model.Position) error
}

type priceSource interface {
	LatestPrice(ctx context.Context, ticker string) (*model.Price, error)
}

// Monitor implements signal.PositionMonitor: it scans every open position
// against the latest price, refreshes the unrealized marks, ratchets
// trailing stops, and emits exit triggers for breached stop levels.
type Monitor struct {
	logger    *logrus.Entry
	positions positionLedger
	market    priceSource
}

func NewMonitor(logger *logrus.Entry, positions positionLedger, market priceSource) *Monitor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Monitor{logger: logger, positions: positions, market: market}
}

func (m *Monitor) MonitorPositions(ctx context.Context, userID uint) ([]signal.ExitTrigger, error) {
	positions, err := m.positions.FindAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading positions: %w", err)
	}

	var triggers []signal.ExitTrigger

	for i := range positions {
		position := &positions[i]

		price, err := m.market.LatestPrice(ctx, position.Ticker)
		if err != nil {
			return nil, fmt.Errorf("fetching price for %s: %w", position.Ticker, err)
		}
		if price == nil || price.Close <= 0 {
			m.logger.WithField("ticker", position.Ticker).
				Debug("no price for open position, skipping")
			continue
		}

		current := price.Close

		position.CurrentPrice = current
		position.UnrealizedPnl = (current - position.AvgPrice) * float64(position.Quantity)
		if position.AvgPrice > 0 {
			position.UnrealizedPnlPct = (current/position.AvgPrice - 1) * 100
		}

		high, stop, moved := execution.NextTrailingStop(position, current)
		position.HighestPriceSincePurchase = high
		if moved && stop > position.StopLossPrice {
			m.logger.WithFields(logrus.Fields{
				"ticker":   position.Ticker,
				"old_stop": position.StopLossPrice,
				"new_stop": stop,
				"high":     high,
			}).Info("trailing stop ratcheted")
			position.StopLossPrice = stop
		}

		if err := m.positions.Update(ctx, position); err != nil {
			return nil, fmt.Errorf("refreshing position %s: %w", position.Ticker, err)
		}

		if trigger, ok := m.checkStops(position, current); ok {
			triggers = append(triggers, trigger)
		}
	}

	m.logger.WithFields(logrus.Fields{
		"positions": len(positions),
		"triggers":  len(triggers),
	}).Info("position scan complete")

	return triggers, nil
}

// checkStops emits at most one trigger per position: a breached stop loss
// always wins over a reached take profit.
func (m *Monitor) checkStops(position *model.Position, current float64) (signal.ExitTrigger, bool) {
	if position.StopLossPrice > 0 && current <= position.StopLossPrice {
		reason := fmt.Sprintf("stop loss %.0f breached at %.0f", position.StopLossPrice, current)
		if execution.TrailingStopTriggered(position, current) && position.StopLossPrice > position.AvgPrice {
			reason = fmt.Sprintf("trailing stop %.0f breached at %.0f (high %.0f)",
				position.StopLossPrice, current, position.HighestPriceSincePurchase)
		}
		return signal.ExitTrigger{
			Ticker:       position.Ticker,
			Quantity:     position.Quantity,
			CurrentPrice: current,
			TriggerPrice: position.StopLossPrice,
			Urgency:      model.UrgencyCritical,
			Reason:       reason,
		}, true
	}

	if position.TakeProfitPrice > 0 && current >= position.TakeProfitPrice {
		return signal.ExitTrigger{
			Ticker:       position.Ticker,
			Quantity:     position.Quantity,
			CurrentPrice: current,
			TriggerPrice: position.TakeProfitPrice,
			Urgency:      model.UrgencyHigh,
			Reason: fmt.Sprintf("take profit %.0f reached at %.0f",
				position.TakeProfitPrice, current),
		}, true
	}

	return signal.ExitTrigger{}, false
}
