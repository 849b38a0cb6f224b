package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/commission"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

const defaultTrailingStopPct = 10.0

var (
	ErrNoPosition    = errors.New("no open position for ticker")
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderTerminal = errors.New("order already in terminal status")
)

// TradeStore is the slice of the trade repository the executor writes to.
type TradeStore interface {
	Create(ctx context.Context, trade *model.Trade) error
	FindByOrderID(ctx context.Context, orderID string) (*model.Trade, error)
	Update(ctx context.Context, trade *model.Trade) error
}

// PositionStore is the slice of the position ledger the executor mutates.
type PositionStore interface {
	FindByUserAndTicker(ctx context.Context, userID uint, ticker string) (*model.Position, error)
	Create(ctx context.Context, position *model.Position) error
	Update(ctx context.Context, position *model.Position) error
	Delete(ctx context.Context, position *model.Position) error
}

// PriceSource supplies fill prices for market orders.
type PriceSource interface {
	LatestPrice(ctx context.Context, ticker string) (*model.Price, error)
}

// Result accumulates one execution batch. Failures on one signal never stop
// the batch; the error text is kept per signal for the report.
type Result struct {
	Total    int               `json:"total"`
	Executed int               `json:"executed"`
	Failed   int               `json:"failed"`
	Skipped  int               `json:"skipped"`
	Trades   []model.Trade     `json:"trades"`
	Errors   map[string]string `json:"errors,omitempty"`
}

func (r *Result) fail(signalID string, err error) {
	r.Failed++
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[signalID] = err.Error()
}

// Executor turns validated signals into trade records and position ledger
// updates. Orders for the same (user, ticker) pair are serialized through a
// keyed lock so concurrent batches cannot interleave ledger writes.
type Executor struct {
	logger     *logrus.Entry
	trades     TradeStore
	positions  PositionStore
	prices     PriceSource
	commission *commission.Model
	cfg        config.Config
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewExecutor(
	logger *logrus.Entry,
	trades TradeStore,
	positions PositionStore,
	prices PriceSource,
	cfg config.Config,
) (*Executor, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	commissionModel, err := commission.NewModel(cfg.Fees)
	if err != nil {
		return nil, err
	}

	return &Executor{
		logger:     logger,
		trades:     trades,
		positions:  positions,
		prices:     prices,
		commission: commissionModel,
		cfg:        cfg,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// ExecuteBatch runs every signal in order. Invalid signals are skipped, a
// cancelled context stops the batch, and each failure is recorded without
// aborting the remaining signals.
func (e *Executor) ExecuteBatch(ctx context.Context, signals []model.TradingSignal) *Result {
	result := &Result{Total: len(signals)}

	for i := range signals {
		if err := ctx.Err(); err != nil {
			e.logger.WithError(err).Warn("execution batch interrupted")
			result.Skipped += len(signals) - i
			break
		}

		sig := &signals[i]

		if !sig.IsValid {
			e.logger.WithField("signal_id", sig.SignalID).Debug("skipping invalid signal")
			result.Skipped++
			continue
		}

		trade, err := e.ExecuteSignal(ctx, sig)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"signal_id": sig.SignalID,
				"ticker":    sig.Ticker,
			}).Error("signal execution failed")
			result.fail(sig.SignalID, err)
			continue
		}

		result.Executed++
		result.Trades = append(result.Trades, *trade)
	}

	e.logger.WithFields(logrus.Fields{
		"total":    result.Total,
		"executed": result.Executed,
		"failed":   result.Failed,
		"skipped":  result.Skipped,
		"dry_run":  e.cfg.DryRun,
	}).Info("execution batch complete")

	return result
}

// ExecuteSignal places a single order and applies it to the ledger. The
// (user, ticker) lock is held for the whole read-modify-write cycle.
func (e *Executor) ExecuteSignal(ctx context.Context, sig *model.TradingSignal) (*model.Trade, error) {
	lock := e.tickerLock(sig.Ticker)
	lock.Lock()
	defer lock.Unlock()

	switch sig.Type {
	case model.SignalTypeEntryBuy:
		return e.executeBuy(ctx, sig)
	case model.SignalTypeExitSell:
		return e.executeSell(ctx, sig)
	default:
		return nil, fmt.Errorf("unknown signal type %q", sig.Type)
	}
}

func (e *Executor) executeBuy(ctx context.Context, sig *model.TradingSignal) (*model.Trade, error) {
	fillPrice, orderType, err := e.fillPrice(ctx, sig)
	if err != nil {
		return nil, err
	}

	quantity := sig.RecommendedShares
	if quantity <= 0 {
		return nil, fmt.Errorf("signal %s has no shares to buy", sig.SignalID)
	}

	costs := e.commission.CalculateBuyCosts(quantity, fillPrice)

	trade := &model.Trade{
		OrderID:   uuid.NewString(),
		UserID:    e.cfg.UserID,
		Ticker:    sig.Ticker,
		Action:    model.OrderActionBuy,
		OrderType: orderType,
		Quantity:  quantity,
		Price:     fillPrice.InexactFloat64(),
		Status:    model.OrderStatusPending,
		Reason:    joinReasons(sig.Reasons),
		CreatedAt: e.now(),
	}

	if err := e.trades.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("recording buy order: %w", err)
	}

	if e.cfg.DryRun {
		e.logger.WithFields(logrus.Fields{
			"order_id": trade.OrderID,
			"ticker":   trade.Ticker,
			"quantity": quantity,
			"price":    trade.Price,
		}).Info("dry run, buy order left pending")
		return trade, nil
	}

	executedAt := e.now()
	trade.Status = model.OrderStatusExecuted
	trade.ExecutedAt = &executedAt
	trade.ExecutedPrice = fillPrice.InexactFloat64()
	trade.ExecutedQuantity = quantity
	trade.TotalAmount = costs.NetAmount().InexactFloat64()
	trade.Commission = costs.Commission.InexactFloat64()

	if err := e.trades.Update(ctx, trade); err != nil {
		return nil, fmt.Errorf("marking buy order executed: %w", err)
	}

	if err := e.applyBuyToLedger(ctx, sig, trade, costs); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"order_id": trade.OrderID,
		"ticker":   trade.Ticker,
		"quantity": quantity,
		"price":    trade.ExecutedPrice,
		"net":      trade.TotalAmount,
	}).Info("buy executed")

	return trade, nil
}

func (e *Executor) applyBuyToLedger(
	ctx context.Context,
	sig *model.TradingSignal,
	trade *model.Trade,
	costs commission.Costs,
) error {

	position, err := e.positions.FindByUserAndTicker(ctx, e.cfg.UserID, sig.Ticker)
	if err != nil {
		return fmt.Errorf("loading position: %w", err)
	}

	fill := trade.ExecutedPrice
	quantity := trade.ExecutedQuantity
	executedAt := *trade.ExecutedAt

	if position == nil {
		position = &model.Position{
			UserID:              e.cfg.UserID,
			Ticker:              sig.Ticker,
			Sector:              sig.Sector,
			Quantity:            quantity,
			AvgPrice:            fill,
			CurrentPrice:        fill,
			InvestedAmount:      costs.NetAmount().InexactFloat64(),
			TotalCommission:     costs.Commission.InexactFloat64(),
			FirstPurchaseDate:   executedAt,
			LastTransactionDate: executedAt,

			TrailingStopEnabled:       true,
			TrailingStopPct:           defaultTrailingStopPct,
			HighestPriceSincePurchase: fill,
		}
		if sig.StopLossPrice != nil {
			position.StopLossPrice = *sig.StopLossPrice
		}
		if sig.TakeProfitPrice != nil {
			position.TakeProfitPrice = *sig.TakeProfitPrice
		}

		if err := e.positions.Create(ctx, position); err != nil {
			return fmt.Errorf("opening position: %w", err)
		}
		return nil
	}

	// Re-averaging an existing holding: the average is weighted by fill
	// quantity, never reset.
	newQuantity := position.Quantity + quantity
	position.AvgPrice = (position.AvgPrice*float64(position.Quantity) + fill*float64(quantity)) / float64(newQuantity)
	position.Quantity = newQuantity
	position.CurrentPrice = fill
	position.InvestedAmount += costs.NetAmount().InexactFloat64()
	position.TotalCommission += costs.Commission.InexactFloat64()
	position.LastTransactionDate = executedAt

	if fill > position.HighestPriceSincePurchase {
		position.HighestPriceSincePurchase = fill
	}
	if sig.StopLossPrice != nil {
		position.StopLossPrice = *sig.StopLossPrice
	}
	if sig.TakeProfitPrice != nil {
		position.TakeProfitPrice = *sig.TakeProfitPrice
	}

	if err := e.positions.Update(ctx, position); err != nil {
		return fmt.Errorf("re-averaging position: %w", err)
	}
	return nil
}

func (e *Executor) executeSell(ctx context.Context, sig *model.TradingSignal) (*model.Trade, error) {
	position, err := e.positions.FindByUserAndTicker(ctx, e.cfg.UserID, sig.Ticker)
	if err != nil {
		return nil, fmt.Errorf("loading position: %w", err)
	}
	if position == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, sig.Ticker)
	}

	fillPrice, orderType, err := e.fillPrice(ctx, sig)
	if err != nil {
		return nil, err
	}

	quantity := sig.RecommendedShares
	if quantity <= 0 {
		return nil, fmt.Errorf("sell quantity must be positive, got %d", quantity)
	}
	if quantity > position.Quantity {
		e.logger.WithFields(logrus.Fields{
			"ticker":    sig.Ticker,
			"requested": quantity,
			"held":      position.Quantity,
		}).Warn("sell quantity clamped to held quantity")
		quantity = position.Quantity
	}

	costs := e.commission.CalculateSellCosts(quantity, fillPrice)

	trade := &model.Trade{
		OrderID:   uuid.NewString(),
		UserID:    e.cfg.UserID,
		Ticker:    sig.Ticker,
		Action:    model.OrderActionSell,
		OrderType: orderType,
		Quantity:  quantity,
		Price:     fillPrice.InexactFloat64(),
		Status:    model.OrderStatusPending,
		Reason:    joinReasons(sig.Reasons),
		CreatedAt: e.now(),
	}

	if err := e.trades.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("recording sell order: %w", err)
	}

	if e.cfg.DryRun {
		e.logger.WithFields(logrus.Fields{
			"order_id": trade.OrderID,
			"ticker":   trade.Ticker,
			"quantity": quantity,
			"price":    trade.Price,
		}).Info("dry run, sell order left pending")
		return trade, nil
	}

	tax := costs.TransactionTax.Add(costs.AgriFishTax).InexactFloat64()

	executedAt := e.now()
	trade.Status = model.OrderStatusExecuted
	trade.ExecutedAt = &executedAt
	trade.ExecutedPrice = fillPrice.InexactFloat64()
	trade.ExecutedQuantity = quantity
	trade.TotalAmount = costs.NetAmount().InexactFloat64()
	trade.Commission = costs.Commission.InexactFloat64()
	trade.Tax = tax

	realizedPnl := (trade.ExecutedPrice-position.AvgPrice)*float64(quantity) - trade.Commission - tax
	trade.RealizedPnl = realizedPnl

	if err := e.trades.Update(ctx, trade); err != nil {
		return nil, fmt.Errorf("marking sell order executed: %w", err)
	}

	if quantity == position.Quantity {
		if err := e.positions.Delete(ctx, position); err != nil {
			return nil, fmt.Errorf("closing position: %w", err)
		}
		e.logger.WithFields(logrus.Fields{
			"order_id":     trade.OrderID,
			"ticker":       trade.Ticker,
			"quantity":     quantity,
			"price":        trade.ExecutedPrice,
			"realized_pnl": realizedPnl,
		}).Info("position closed")
		return trade, nil
	}

	remaining := position.Quantity - quantity
	position.InvestedAmount *= float64(remaining) / float64(position.Quantity)
	position.Quantity = remaining
	position.CurrentPrice = trade.ExecutedPrice
	position.RealizedPnl += realizedPnl
	position.TotalCommission += trade.Commission
	position.TotalTax += tax
	position.LastTransactionDate = executedAt

	if err := e.positions.Update(ctx, position); err != nil {
		return nil, fmt.Errorf("reducing position: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"order_id":     trade.OrderID,
		"ticker":       trade.Ticker,
		"quantity":     quantity,
		"remaining":    remaining,
		"realized_pnl": realizedPnl,
	}).Info("position reduced")

	return trade, nil
}

// CancelOrder moves a pending order to CANCELLED. Terminal orders are never
// reopened.
func (e *Executor) CancelOrder(ctx context.Context, orderID, reason string) (*model.Trade, error) {
	trade, err := e.trades.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if trade == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if trade.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderTerminal, orderID, trade.Status)
	}

	cancelledAt := e.now()
	trade.Status = model.OrderStatusCancelled
	trade.CancelledAt = &cancelledAt
	if reason != "" {
		if trade.Reason != "" {
			trade.Reason += "; "
		}
		trade.Reason = capReason(trade.Reason + "cancelled: " + reason)
	}

	if err := e.trades.Update(ctx, trade); err != nil {
		return nil, fmt.Errorf("cancelling order: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"reason":   reason,
	}).Info("order cancelled")

	return trade, nil
}

// fillPrice resolves the price an order fills at: the signal's limit price
// for limit orders, the latest close for market orders.
func (e *Executor) fillPrice(ctx context.Context, sig *model.TradingSignal) (decimal.Decimal, string, error) {
	if sig.OrderType == model.OrderTypeLimit && sig.LimitPrice != nil {
		return decimal.NewFromFloat(*sig.LimitPrice), model.OrderTypeLimit, nil
	}

	price, err := e.prices.LatestPrice(ctx, sig.Ticker)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("fetching market price: %w", err)
	}
	if price == nil || price.Close <= 0 {
		return decimal.Zero, "", fmt.Errorf("no market price for %s", sig.Ticker)
	}

	return decimal.NewFromFloat(price.Close), model.OrderTypeMarket, nil
}

func (e *Executor) tickerLock(ticker string) *sync.Mutex {
	key := fmt.Sprintf("%d:%s", e.cfg.UserID, ticker)

	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return capReason(out)
}

// capReason keeps the audit trail within the reason column width.
func capReason(reason string) string {
	if len(reason) > 1024 {
		return reason[:1024]
	}
	return reason
}
