package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/database"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

// TradeRepository handles read/write operations for executed trades.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main
// read/write database.
func NewTradeRepository() *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository with MainDB")

	return &TradeRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create inserts a new trade into the database.
// The given trade will be updated with the generated ID and timestamps.
func (r *TradeRepository) Create(
	ctx context.Context,
	trade *model.Trade,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "Create",
		"ticker": trade.Ticker,
		"action": trade.Action,
		"qty":    trade.Quantity,
	}).Debug("Creating new trade")

	err := r.db.WithContext(ctx).Create(trade).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create trade")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Create",
		"order_id": trade.OrderID,
	}).Info("Trade created successfully")

	return nil
}

// FindByOrderID fetches a single trade by its unique order ID.
// Returns (nil, nil) if the trade is not found.
func (r *TradeRepository) FindByOrderID(
	ctx context.Context,
	orderID string,
) (*model.Trade, error) {

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "FindByOrderID",
		"order_id": orderID,
	}).Debug("Fetching trade by order ID")

	var trade model.Trade

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "TradeRepository",
				"op":       "FindByOrderID",
				"order_id": orderID,
			}).Info("Trade not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch trade by order ID")

		return nil, err
	}

	return &trade, nil
}

// Update persists all changed fields of the given trade.
func (r *TradeRepository) Update(
	ctx context.Context,
	trade *model.Trade,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Update",
		"order_id": trade.OrderID,
		"status":   trade.Status,
	}).Debug("Updating trade")

	err := r.db.WithContext(ctx).Save(trade).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "Update",
			"order_id": trade.OrderID,
		}).WithError(err).Error("Failed to update trade")

		return err
	}

	return nil
}

// TradeSearchOptions filters the Search query. Zero-value fields are
// ignored.
type TradeSearchOptions struct {
	UserID        uint
	Ticker        *string
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Search lists trades for a user, newest first, with optional filters and
// pagination.
func (r *TradeRepository) Search(
	ctx context.Context,
	options TradeSearchOptions,
) ([]model.Trade, error) {

	logger.WithFields(map[string]interface{}{
		"repo":    "TradeRepository",
		"op":      "Search",
		"user_id": options.UserID,
	}).Debug("Searching trades")

	query := r.db.WithContext(ctx).
		Where("user_id = ?", options.UserID)

	if options.Ticker != nil {
		query = query.Where("ticker = ?", *options.Ticker)
	}
	if options.Status != nil {
		query = query.Where("status = ?", *options.Status)
	}
	if options.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *options.CreatedAfter)
	}
	if options.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *options.CreatedBefore)
	}

	query = query.Order("created_at DESC, id DESC")

	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var trades []model.Trade
	if err := query.Find(&trades).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "TradeRepository",
			"op":      "Search",
			"user_id": options.UserID,
		}).WithError(err).Error("Failed to search trades")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "TradeRepository",
		"op":          "Search",
		"user_id":     options.UserID,
		"rows_return": len(trades),
	}).Info("Trades fetched")

	return trades, nil
}

// SumExecutedAmount totals executed trade amounts for one side of the book
// (BUY = cash out, SELL = cash in).
func (r *TradeRepository) SumExecutedAmount(
	ctx context.Context,
	userID uint,
	action string,
) (float64, error) {

	var total float64
	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("user_id = ? AND action = ? AND status = ?", userID, action, model.OrderStatusExecuted).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&total).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "TradeRepository",
			"op":      "SumExecutedAmount",
			"user_id": userID,
			"action":  action,
		}).WithError(err).Error("Failed to sum executed amounts")

		return 0, err
	}

	return total, nil
}

// RealizedPnlStats aggregates win/loss statistics over executed sells.
type RealizedPnlStats struct {
	Wins       int64
	Losses     int64
	AvgWinPnl  float64
	AvgLossPnl float64
}

// GetRealizedPnlStats computes the win rate inputs from closed (sold)
// trades. Zero-pnl sells count as neither win nor loss.
func (r *TradeRepository) GetRealizedPnlStats(
	ctx context.Context,
	userID uint,
) (RealizedPnlStats, error) {

	var stats RealizedPnlStats
	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("user_id = ? AND action = ? AND status = ?", userID, model.OrderActionSell, model.OrderStatusExecuted).
		Select(`
			COALESCE(SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END), 0) AS wins,
			COALESCE(SUM(CASE WHEN realized_pnl < 0 THEN 1 ELSE 0 END), 0) AS losses,
			COALESCE(AVG(CASE WHEN realized_pnl > 0 THEN realized_pnl END), 0) AS avg_win_pnl,
			COALESCE(AVG(CASE WHEN realized_pnl < 0 THEN realized_pnl END), 0) AS avg_loss_pnl
		`).
		Scan(&stats).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "TradeRepository",
			"op":      "GetRealizedPnlStats",
			"user_id": userID,
		}).WithError(err).Error("Failed to aggregate realized pnl stats")

		return RealizedPnlStats{}, err
	}

	return stats, nil
}
