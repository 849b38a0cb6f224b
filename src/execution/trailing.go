package execution

import "github.com/sangrokhan/ko-stock-filter-sub001/src/model"

// NextTrailingStop computes the next stop level for a position given a new
// price observation.
//
// - the high-water mark only moves up
// - candidate stop = high-water mark * (1 - trailing pct)
// - update: stop = max(stop, candidate); the stop never loosens
func NextTrailingStop(position *model.Position, currentPrice float64) (newHigh, newStop float64, moved bool) {
	newHigh = position.HighestPriceSincePurchase
	newStop = position.StopLossPrice

	if !position.TrailingStopEnabled || currentPrice <= 0 {
		return newHigh, newStop, false
	}

	if currentPrice > newHigh {
		newHigh = currentPrice
	}

	candidate := newHigh * (1 - position.TrailingStopPct/100)
	if candidate > newStop {
		return newHigh, candidate, true
	}

	return newHigh, newStop, newHigh != position.HighestPriceSincePurchase
}

// TrailingStopTriggered reports whether the current price has fallen to or
// below the active stop level.
func TrailingStopTriggered(position *model.Position, currentPrice float64) bool {
	if !position.TrailingStopEnabled || position.StopLossPrice <= 0 {
		return false
	}
	return currentPrice <= position.StopLossPrice
}
