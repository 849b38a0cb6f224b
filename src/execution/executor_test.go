package execution

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

type memTrades struct {
	byOrderID map[string]*model.Trade
	created   []string
	nextID    uint
}

func newMemTrades() *memTrades {
	return &memTrades{byOrderID: make(map[string]*model.Trade)}
}

func (m *memTrades) Create(_ context.Context, trade *model.Trade) error {
	m.nextID++
	trade.ID = m.nextID
	copied := *trade
	m.byOrderID[trade.OrderID] = &copied
	m.created = append(m.created, trade.OrderID)
	return nil
}

func (m *memTrades) FindByOrderID(_ context.Context, orderID string) (*model.Trade, error) {
	trade, ok := m.byOrderID[orderID]
	if !ok {
		return nil, nil
	}
	copied := *trade
	return &copied, nil
}

func (m *memTrades) Update(_ context.Context, trade *model.Trade) error {
	copied := *trade
	m.byOrderID[trade.OrderID] = &copied
	return nil
}

type memPositions struct {
	byTicker map[string]*model.Position
	nextID   uint
}

func newMemPositions() *memPositions {
	return &memPositions{byTicker: make(map[string]*model.Position)}
}

func (m *memPositions) FindByUserAndTicker(_ context.Context, _ uint, ticker string) (*model.Position, error) {
	position, ok := m.byTicker[ticker]
	if !ok {
		return nil, nil
	}
	copied := *position
	return &copied, nil
}

func (m *memPositions) Create(_ context.Context, position *model.Position) error {
	m.nextID++
	position.ID = m.nextID
	copied := *position
	m.byTicker[position.Ticker] = &copied
	return nil
}

func (m *memPositions) Update(_ context.Context, position *model.Position) error {
	copied := *position
	m.byTicker[position.Ticker] = &copied
	return nil
}

func (m *memPositions) Delete(_ context.Context, position *model.Position) error {
	delete(m.byTicker, position.Ticker)
	return nil
}

type memPrices struct {
	closes map[string]float64
}

func (m *memPrices) LatestPrice(_ context.Context, ticker string) (*model.Price, error) {
	close, ok := m.closes[ticker]
	if !ok {
		return nil, nil
	}
	return &model.Price{Ticker: ticker, Close: close, Date: execNow}, nil
}

var execNow = time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC)

func executorConfig() config.Config {
	return config.Config{
		UserID: 1,
		DryRun: false,
		Fees: config.FeeStructure{
			CommissionRatePct:     0.015,
			TransactionTaxRatePct: 0.23,
			AgriFishTaxRatePct:    0.15,
		},
	}
}

func newTestExecutor(t *testing.T, cfg config.Config, prices map[string]float64) (*Executor, *memTrades, *memPositions) {
	t.Helper()

	trades := newMemTrades()
	positions := newMemPositions()
	logger, _ := logrustest.NewNullLogger()

	executor, err := NewExecutor(logger.WithField("test", true), trades, positions, &memPrices{closes: prices}, cfg)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	executor.now = func() time.Time { return execNow }

	return executor, trades, positions
}

func buySignal(ticker string, shares int64) model.TradingSignal {
	stopLoss := 63000.0
	takeProfit := 84000.0
	return model.TradingSignal{
		SignalID:          "sig-" + ticker,
		Ticker:            ticker,
		Sector:            "Electronics",
		Type:              model.SignalTypeEntryBuy,
		OrderType:         model.OrderTypeMarket,
		RecommendedShares: shares,
		StopLossPrice:     &stopLoss,
		TakeProfitPrice:   &takeProfit,
		Reasons:           []string{"strong value opportunity"},
		IsValid:           true,
	}
}

func sellSignal(ticker string, shares int64) model.TradingSignal {
	return model.TradingSignal{
		SignalID:          "exit-" + ticker,
		Ticker:            ticker,
		Type:              model.SignalTypeExitSell,
		OrderType:         model.OrderTypeMarket,
		RecommendedShares: shares,
		Reasons:           []string{"stop loss triggered"},
		IsValid:           true,
	}
}

func approxEqual(got, want, tolerance float64) bool {
	return math.Abs(got-want) <= tolerance
}

func TestExecuteBuyOpensPosition(t *testing.T) {
	executor, trades, positions := newTestExecutor(t, executorConfig(), map[string]float64{"005930": 70000})

	sig := buySignal("005930", 100)
	trade, err := executor.ExecuteSignal(context.Background(), &sig)
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}

	if trade.Status != model.OrderStatusExecuted {
		t.Fatalf("expected EXECUTED, got %s", trade.Status)
	}
	if trade.ExecutedPrice != 70000 || trade.ExecutedQuantity != 100 {
		t.Fatalf("unexpected fill %v x %v", trade.ExecutedPrice, trade.ExecutedQuantity)
	}
	// gross 7,000,000 + 0.015% commission 1,050
	if trade.Commission != 1050 {
		t.Fatalf("expected commission 1050, got %v", trade.Commission)
	}
	if trade.TotalAmount != 7001050 {
		t.Fatalf("expected net 7001050, got %v", trade.TotalAmount)
	}

	stored, _ := trades.FindByOrderID(context.Background(), trade.OrderID)
	if stored == nil || stored.Status != model.OrderStatusExecuted {
		t.Fatal("executed trade not persisted")
	}

	position := positions.byTicker["005930"]
	if position == nil {
		t.Fatal("position not opened")
	}
	if position.Quantity != 100 || position.AvgPrice != 70000 {
		t.Fatalf("unexpected position %d @ %v", position.Quantity, position.AvgPrice)
	}
	if position.StopLossPrice != 63000 || position.TakeProfitPrice != 84000 {
		t.Fatalf("stop levels not carried: %v / %v", position.StopLossPrice, position.TakeProfitPrice)
	}
	if !position.TrailingStopEnabled || position.TrailingStopPct != defaultTrailingStopPct {
		t.Fatal("trailing stop not anchored on open")
	}
	if position.HighestPriceSincePurchase != 70000 {
		t.Fatalf("high-water mark not anchored at fill: %v", position.HighestPriceSincePurchase)
	}
	if position.FirstPurchaseDate != execNow {
		t.Fatal("first purchase date not set")
	}
}

// Buying more of a held ticker re-averages the position instead of opening a
// second one: 100 @ 70,000 then 50 @ 75,000 averages to 71,666.67 over 150.
func TestExecuteBuyReAveragesExistingPosition(t *testing.T) {
	executor, _, positions := newTestExecutor(t, executorConfig(), map[string]float64{"005930": 70000})

	first := buySignal("005930", 100)
	if _, err := executor.ExecuteSignal(context.Background(), &first); err != nil {
		t.Fatalf("first buy: %v", err)
	}

	executor.prices = &memPrices{closes: map[string]float64{"005930": 75000}}

	second := buySignal("005930", 50)
	if _, err := executor.ExecuteSignal(context.Background(), &second); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	position := positions.byTicker["005930"]
	if position.Quantity != 150 {
		t.Fatalf("expected 150 shares, got %d", position.Quantity)
	}
	if !approxEqual(position.AvgPrice, 71666.6667, 0.01) {
		t.Fatalf("expected avg 71666.67, got %v", position.AvgPrice)
	}
	// 7,001,050 + 3,750,563 (gross 3,750,000 + commission 562.5 -> 563)
	if !approxEqual(position.InvestedAmount, 10751613, 1) {
		t.Fatalf("unexpected invested amount %v", position.InvestedAmount)
	}
	if position.HighestPriceSincePurchase != 75000 {
		t.Fatalf("high-water mark should follow the higher fill: %v", position.HighestPriceSincePurchase)
	}
	if len(positions.byTicker) != 1 {
		t.Fatalf("expected a single position row, got %d", len(positions.byTicker))
	}
}

func TestExecuteSellFullExitDeletesPosition(t *testing.T) {
	executor, _, positions := newTestExecutor(t, executorConfig(), map[string]float64{"005930": 70000})

	buy := buySignal("005930", 150)
	if _, err := executor.ExecuteSignal(context.Background(), &buy); err != nil {
		t.Fatalf("buy: %v", err)
	}

	executor.prices = &memPrices{closes: map[string]float64{"005930": 80000}}

	sell := sellSignal("005930", 150)
	trade, err := executor.ExecuteSignal(context.Background(), &sell)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	// gross 12,000,000: commission 1,800, tax 27,600, agri levy 41
	if trade.Commission != 1800 {
		t.Fatalf("expected commission 1800, got %v", trade.Commission)
	}
	if trade.Tax != 27641 {
		t.Fatalf("expected tax 27641, got %v", trade.Tax)
	}
	if trade.TotalAmount != 11970559 {
		t.Fatalf("expected net proceeds 11970559, got %v", trade.TotalAmount)
	}

	if _, held := positions.byTicker["005930"]; held {
		t.Fatal("full exit must delete the position row")
	}
}

func TestExecuteSellPartialExitReducesPosition(t *testing.T) {
	executor, _, positions := newTestExecutor(t, executorConfig(), map[string]float64{"005930": 70000})

	buy := buySignal("005930", 100)
	if _, err := executor.ExecuteSignal(context.Background(), &buy); err != nil {
		t.Fatalf("buy: %v", err)
	}
	investedBefore := positions.byTicker["005930"].InvestedAmount

	executor.prices = &memPrices{closes: map[string]float64{"005930": 72000}}

	sell := sellSignal("005930", 40)
	trade, err := executor.ExecuteSignal(context.Background(), &sell)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	position := positions.byTicker["005930"]
	if position == nil {
		t.Fatal("partial exit must keep the position row")
	}
	if position.Quantity != 60 {
		t.Fatalf("expected 60 shares remaining, got %d", position.Quantity)
	}
	if position.AvgPrice != 70000 {
		t.Fatalf("partial exit must not touch the average: %v", position.AvgPrice)
	}
	if !approxEqual(position.InvestedAmount, investedBefore*0.6, 0.01) {
		t.Fatalf("invested amount not reduced proportionally: %v", position.InvestedAmount)
	}

	// gross 2,880,000: commission 432, tax 6,624, agri levy 10
	wantPnl := (72000.0-70000.0)*40 - 432 - 6624 - 10
	if !approxEqual(position.RealizedPnl, wantPnl, 0.01) {
		t.Fatalf("expected realized pnl %v, got %v", wantPnl, position.RealizedPnl)
	}
	if trade.ExecutedQuantity != 40 {
		t.Fatalf("unexpected executed quantity %d", trade.ExecutedQuantity)
	}
}

func TestExecuteSellClampsOversell(t *testing.T) {
	executor, _, positions := newTestExecutor(t, executorConfig(), map[string]float64{"005930": 70000})

	buy := buySignal("005930", 30)
	if _, err := executor.ExecuteSignal(context.Background(), &buy); err != nil {
		t.Fatalf("buy: %v", err)
	}

	sell := sellSignal("005930", 500)
	trade, err := executor.ExecuteSignal(context.Background(), &sell)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	if trade.ExecutedQuantity != 30 {
		t.Fatalf("expected oversell clamped to 30, got %d", trade.ExecutedQuantity)
	}
	if _, held := positions.byTicker["005930"]; held {
		t.Fatal("clamped full exit must delete the position")
	}
}

func TestExecuteSellRejectsZeroQuantity(t *testing.T) {
	executor, trades, positions := newTestExecutor(t, executorConfig(), map[string]float64{"005930": 70000})

	buy := buySignal("005930", 30)
	if _, err := executor.ExecuteSignal(context.Background(), &buy); err != nil {
		t.Fatalf("buy: %v", err)
	}
	createdBefore := len(trades.created)

	sell := sellSignal("005930", 0)
	if _, err := executor.ExecuteSignal(context.Background(), &sell); err == nil {
		t.Fatal("expected error for zero sell quantity")
	}

	if len(trades.created) != createdBefore {
		t.Fatal("rejected sell must not record an order")
	}
	position := positions.byTicker["005930"]
	if position == nil || position.Quantity != 30 {
		t.Fatalf("rejected sell must not touch the position: %+v", position)
	}
}

func TestExecuteSellWithoutPositionFails(t *testing.T) {
	executor, trades, _ := newTestExecutor(t, executorConfig(), map[string]float64{"005930": 70000})

	sell := sellSignal("005930", 10)
	if _, err := executor.ExecuteSignal(context.Background(), &sell); err == nil {
		t.Fatal("expected error selling without a position")
	}
	if len(trades.created) != 0 {
		t.Fatal("no trade record should be written for a rejected sell")
	}
}

func TestDryRunLeavesOrderPending(t *testing.T) {
	cfg := executorConfig()
	cfg.DryRun = true
	executor, trades, positions := newTestExecutor(t, cfg, map[string]float64{"005930": 70000})

	sig := buySignal("005930", 100)
	trade, err := executor.ExecuteSignal(context.Background(), &sig)
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}

	if trade.Status != model.OrderStatusPending {
		t.Fatalf("dry run order must stay PENDING, got %s", trade.Status)
	}
	if len(positions.byTicker) != 0 {
		t.Fatal("dry run must not touch the ledger")
	}
	if len(trades.created) != 1 {
		t.Fatal("dry run must still record the order")
	}
}

func TestLimitOrderFillsAtLimitPrice(t *testing.T) {
	executor, _, _ := newTestExecutor(t, executorConfig(), map[string]float64{"005930": 70000})

	limit := 69500.0
	sig := buySignal("005930", 10)
	sig.OrderType = model.OrderTypeLimit
	sig.LimitPrice = &limit

	trade, err := executor.ExecuteSignal(context.Background(), &sig)
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}
	if trade.OrderType != model.OrderTypeLimit || trade.ExecutedPrice != 69500 {
		t.Fatalf("expected limit fill at 69500, got %s @ %v", trade.OrderType, trade.ExecutedPrice)
	}
}

func TestCancelOrder(t *testing.T) {
	cfg := executorConfig()
	cfg.DryRun = true
	executor, _, _ := newTestExecutor(t, cfg, map[string]float64{"005930": 70000})

	sig := buySignal("005930", 10)
	trade, err := executor.ExecuteSignal(context.Background(), &sig)
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}

	cancelled, err := executor.CancelOrder(context.Background(), trade.OrderID, "operator request")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.Status != model.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("cancelled_at not set")
	}

	if _, err := executor.CancelOrder(context.Background(), trade.OrderID, "again"); err == nil {
		t.Fatal("cancelling a terminal order must fail")
	}
	if _, err := executor.CancelOrder(context.Background(), "missing-order", ""); err == nil {
		t.Fatal("cancelling an unknown order must fail")
	}
}

func TestCancelOrderKeepsReasonWithinColumn(t *testing.T) {
	cfg := executorConfig()
	cfg.DryRun = true
	executor, _, _ := newTestExecutor(t, cfg, map[string]float64{"005930": 70000})

	sig := buySignal("005930", 10)
	sig.Reasons = []string{strings.Repeat("x", 2000)}
	trade, err := executor.ExecuteSignal(context.Background(), &sig)
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}
	if len(trade.Reason) != 1024 {
		t.Fatalf("expected order reason truncated to 1024, got %d", len(trade.Reason))
	}

	cancelled, err := executor.CancelOrder(context.Background(), trade.OrderID, "stale order")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if len(cancelled.Reason) != 1024 {
		t.Fatalf("cancel note must not grow the reason past 1024, got %d", len(cancelled.Reason))
	}
}

func TestExecuteBatchSkipsInvalidAndKeepsGoing(t *testing.T) {
	executor, _, positions := newTestExecutor(t, executorConfig(), map[string]float64{
		"005930": 70000,
		"035420": 210000,
	})

	invalid := buySignal("000660", 10)
	invalid.IsValid = false

	failing := buySignal("123456", 10) // no market price on record

	good := buySignal("005930", 5)
	alsoGood := buySignal("035420", 3)

	result := executor.ExecuteBatch(context.Background(),
		[]model.TradingSignal{invalid, failing, good, alsoGood})

	if result.Total != 4 || result.Executed != 2 || result.Failed != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := result.Errors["sig-123456"]; !ok {
		t.Fatalf("expected error recorded for sig-123456, got %v", result.Errors)
	}
	if len(result.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(result.Trades))
	}
	if len(positions.byTicker) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions.byTicker))
	}
}

func TestExecuteBatchStopsOnCancelledContext(t *testing.T) {
	executor, _, _ := newTestExecutor(t, executorConfig(), map[string]float64{"005930": 70000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := executor.ExecuteBatch(ctx, []model.TradingSignal{
		buySignal("005930", 10),
		buySignal("005930", 10),
	})

	if result.Executed != 0 || result.Skipped != 2 {
		t.Fatalf("expected everything skipped, got %+v", result)
	}
}

func TestNextTrailingStop(t *testing.T) {
	base := model.Position{
		TrailingStopEnabled:       true,
		TrailingStopPct:           10,
		StopLossPrice:             63000,
		HighestPriceSincePurchase: 70000,
	}

	tests := []struct {
		name      string
		price     float64
		wantHigh  float64
		wantStop  float64
		wantMoved bool
	}{
		{"new high ratchets stop up", 80000, 80000, 72000, true},
		{"below high keeps stop", 69000, 70000, 63000, false},
		{"drop never loosens stop", 50000, 70000, 63000, false},
		{"small new high below stop band", 70100, 70100, 63090, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			position := base
			high, stop, moved := NextTrailingStop(&position, tt.price)
			if high != tt.wantHigh || !approxEqual(stop, tt.wantStop, 0.001) || moved != tt.wantMoved {
				t.Fatalf("got high=%v stop=%v moved=%v, want %v/%v/%v",
					high, stop, moved, tt.wantHigh, tt.wantStop, tt.wantMoved)
			}
		})
	}

	t.Run("disabled position never moves", func(t *testing.T) {
		position := base
		position.TrailingStopEnabled = false
		_, stop, moved := NextTrailingStop(&position, 100000)
		if moved || stop != 63000 {
			t.Fatalf("disabled trailing must not move: stop=%v moved=%v", stop, moved)
		}
	})
}

func TestTrailingStopTriggered(t *testing.T) {
	position := model.Position{
		TrailingStopEnabled: true,
		StopLossPrice:       63000,
	}

	if !TrailingStopTriggered(&position, 63000) {
		t.Fatal("price at the stop must trigger")
	}
	if !TrailingStopTriggered(&position, 62000) {
		t.Fatal("price below the stop must trigger")
	}
	if TrailingStopTriggered(&position, 63001) {
		t.Fatal("price above the stop must not trigger")
	}

	position.TrailingStopEnabled = false
	if TrailingStopTriggered(&position, 50000) {
		t.Fatal("disabled trailing must not trigger")
	}
}
