package signal

import (
	"context"
	"testing"
	"time"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

func TestConvertExitTriggerUrgencyMapping(t *testing.T) {
	gen := newTestGenerator(t, &stubMarketData{}, &stubPositionBook{}, &stubMonitor{})

	tests := []struct {
		name         string
		urgency      model.Urgency
		wantType     string
		wantStrength model.SignalStrength
		wantLimit    bool
	}{
		{"critical is market very strong", model.UrgencyCritical, model.OrderTypeMarket, model.StrengthVeryStrong, false},
		{"high is market strong", model.UrgencyHigh, model.OrderTypeMarket, model.StrengthStrong, false},
		{"normal is limit moderate", model.UrgencyNormal, model.OrderTypeLimit, model.StrengthModerate, true},
		{"low is limit moderate", model.UrgencyLow, model.OrderTypeLimit, model.StrengthModerate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := gen.convertExitTrigger(ExitTrigger{
				Ticker:       "005930",
				Quantity:     50,
				CurrentPrice: 61000,
				TriggerPrice: 63000,
				Urgency:      tt.urgency,
				Reason:       "stop loss triggered",
			})

			if sig.Type != model.SignalTypeExitSell {
				t.Fatalf("expected exit signal, got %s", sig.Type)
			}
			if sig.OrderType != tt.wantType {
				t.Fatalf("order type mismatch. got=%s want=%s", sig.OrderType, tt.wantType)
			}
			if sig.Strength != tt.wantStrength {
				t.Fatalf("strength mismatch. got=%s want=%s", sig.Strength, tt.wantStrength)
			}
			if tt.wantLimit {
				if sig.LimitPrice == nil || *sig.LimitPrice != 63000 {
					t.Fatalf("expected limit price at trigger price, got %v", sig.LimitPrice)
				}
			} else if sig.LimitPrice != nil {
				t.Fatalf("market order must carry no limit price")
			}
			if sig.RecommendedShares != 50 {
				t.Fatalf("quantity mismatch. got=%d want=50", sig.RecommendedShares)
			}
		})
	}
}

func TestGenerateExitSignalsDeterioratingFundamentals(t *testing.T) {
	ticker := "005930"

	market := &stubMarketData{
		prices: map[string]*model.Price{
			ticker: {Ticker: ticker, Close: 58000, Date: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)},
		},
		scores: map[string]*model.CompositeScore{
			ticker: {Ticker: ticker, CompositeScore: 27.5, QualityScore: 55, GrowthScore: 45},
		},
		priorScores: map[string]*model.CompositeScore{
			ticker: {Ticker: ticker, CompositeScore: 67.5},
		},
	}
	book := &stubPositionBook{positions: []model.Position{
		{UserID: 1, Ticker: ticker, Quantity: 30, AvgPrice: 65000, CurrentPrice: 60000},
	}}

	gen := newTestGenerator(t, market, book, &stubMonitor{})

	signals, err := gen.GenerateExitSignals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(signals) != 1 {
		t.Fatalf("expected one exit signal, got %d", len(signals))
	}

	sig := signals[0]
	if sig.Type != model.SignalTypeExitSell || sig.OrderType != model.OrderTypeMarket {
		t.Fatalf("deteriorated position must exit as a market sell: %+v", sig)
	}
	if sig.RecommendedShares != 30 {
		t.Fatalf("deteriorated position must exit the full quantity, got %d", sig.RecommendedShares)
	}
	if !containsSubstring(sig.Reasons, "composite score dropped 40.0 points") {
		t.Fatalf("expected score-drop reason, got %v", sig.Reasons)
	}
	if sig.CurrentPrice != 58000 {
		t.Fatalf("exit must use the latest price, got %v", sig.CurrentPrice)
	}
}

func TestGenerateExitSignalsMultipleConditionsUnion(t *testing.T) {
	ticker := "035720"

	market := &stubMarketData{
		scores: map[string]*model.CompositeScore{
			ticker: {Ticker: ticker, CompositeScore: 50, QualityScore: 35, GrowthScore: 25},
		},
	}
	book := &stubPositionBook{positions: []model.Position{
		{UserID: 1, Ticker: ticker, Quantity: 10, CurrentPrice: 45000},
	}}

	gen := newTestGenerator(t, market, book, &stubMonitor{})

	signals, err := gen.GenerateExitSignals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(signals) != 1 {
		t.Fatalf("multiple conditions on one position must yield a single signal, got %d", len(signals))
	}
	if len(signals[0].Reasons) != 2 {
		t.Fatalf("expected both quality and growth reasons, got %v", signals[0].Reasons)
	}
}

func TestGenerateExitSignalsHealthyPositionIgnored(t *testing.T) {
	ticker := "005930"

	market := &stubMarketData{
		scores: map[string]*model.CompositeScore{
			ticker: {Ticker: ticker, CompositeScore: 70, QualityScore: 80, GrowthScore: 60},
		},
		priorScores: map[string]*model.CompositeScore{
			ticker: {Ticker: ticker, CompositeScore: 72},
		},
	}
	book := &stubPositionBook{positions: []model.Position{
		{UserID: 1, Ticker: ticker, Quantity: 10, CurrentPrice: 70000},
	}}

	gen := newTestGenerator(t, market, book, &stubMonitor{})

	signals, err := gen.GenerateExitSignals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("healthy position must not produce an exit signal, got %+v", signals)
	}
}

func TestGenerateExitSignalsCombinesMonitorTriggers(t *testing.T) {
	monitor := &stubMonitor{triggers: []ExitTrigger{
		{Ticker: "000660", Quantity: 20, CurrentPrice: 91000, TriggerPrice: 92000, Urgency: model.UrgencyCritical, Reason: "emergency stop"},
	}}

	gen := newTestGenerator(t, &stubMarketData{}, &stubPositionBook{}, monitor)

	signals, err := gen.GenerateExitSignals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(signals) != 1 {
		t.Fatalf("expected the monitor trigger to convert 1:1, got %d", len(signals))
	}
	if signals[0].Urgency != model.UrgencyCritical || signals[0].Strength != model.StrengthVeryStrong {
		t.Fatalf("unexpected conversion: %+v", signals[0])
	}
}
