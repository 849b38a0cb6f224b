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

// MarketDataRepository handles read-only access to the market and score
// tables owned by the upstream collectors and scorers.
type MarketDataRepository struct {
	db *gorm.DB
}

// NewMarketDataRepository creates a new repository instance.
// It uses the ReadOnlyDB connection by default.
func NewMarketDataRepository() *MarketDataRepository {
	logger.WithField("component", "MarketDataRepository").
		Info("Creating new MarketDataRepository with ReadOnlyDB")

	return &MarketDataRepository{
		db: database.ReadOnlyDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions.
func (r *MarketDataRepository) WithDB(db *gorm.DB) *MarketDataRepository {
	return &MarketDataRepository{db: db}
}

// LatestPrice fetches the most recent price row for a ticker.
// Returns (nil, nil) if no price exists.
func (r *MarketDataRepository) LatestPrice(
	ctx context.Context,
	ticker string,
) (*model.Price, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "MarketDataRepository",
		"op":     "LatestPrice",
		"ticker": ticker,
	}).Debug("Fetching latest price")

	var price model.Price

	err := r.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("date DESC").
		First(&price).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "MarketDataRepository",
			"op":     "LatestPrice",
			"ticker": ticker,
		}).WithError(err).Error("Failed to fetch latest price")

		return nil, err
	}

	return &price, nil
}

// LatestCompositeScore fetches the most recent composite score row for a
// ticker. Returns (nil, nil) if none exists.
func (r *MarketDataRepository) LatestCompositeScore(
	ctx context.Context,
	ticker string,
) (*model.CompositeScore, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "MarketDataRepository",
		"op":     "LatestCompositeScore",
		"ticker": ticker,
	}).Debug("Fetching latest composite score")

	var score model.CompositeScore

	err := r.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("calculated_at DESC").
		First(&score).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "MarketDataRepository",
			"op":     "LatestCompositeScore",
			"ticker": ticker,
		}).WithError(err).Error("Failed to fetch latest composite score")

		return nil, err
	}

	return &score, nil
}

// CompositeScoreAsOf fetches the newest composite score calculated at or
// before the given time, used by the deteriorating-fundamentals scan to look
// ~30 days back. Returns (nil, nil) if none exists.
func (r *MarketDataRepository) CompositeScoreAsOf(
	ctx context.Context,
	ticker string,
	asOf time.Time,
) (*model.CompositeScore, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "MarketDataRepository",
		"op":     "CompositeScoreAsOf",
		"ticker": ticker,
		"as_of":  asOf,
	}).Debug("Fetching composite score as of date")

	var score model.CompositeScore

	err := r.db.WithContext(ctx).
		Where("ticker = ? AND calculated_at <= ?", ticker, asOf).
		Order("calculated_at DESC").
		First(&score).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "MarketDataRepository",
			"op":     "CompositeScoreAsOf",
			"ticker": ticker,
		}).WithError(err).Error("Failed to fetch composite score as of date")

		return nil, err
	}

	return &score, nil
}

// LatestTechnical fetches the most recent technical snapshot for a ticker.
// Returns (nil, nil) if none exists.
func (r *MarketDataRepository) LatestTechnical(
	ctx context.Context,
	ticker string,
) (*model.TechnicalSnapshot, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "MarketDataRepository",
		"op":     "LatestTechnical",
		"ticker": ticker,
	}).Debug("Fetching latest technical snapshot")

	var snap model.TechnicalSnapshot

	err := r.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("captured_at DESC").
		First(&snap).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "MarketDataRepository",
			"op":     "LatestTechnical",
			"ticker": ticker,
		}).WithError(err).Error("Failed to fetch latest technical snapshot")

		return nil, err
	}

	return &snap, nil
}

// LatestFundamental fetches the most recent fundamental snapshot for a
// ticker. Returns (nil, nil) if none exists.
func (r *MarketDataRepository) LatestFundamental(
	ctx context.Context,
	ticker string,
) (*model.FundamentalSnapshot, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "MarketDataRepository",
		"op":     "LatestFundamental",
		"ticker": ticker,
	}).Debug("Fetching latest fundamental snapshot")

	var snap model.FundamentalSnapshot

	err := r.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("captured_at DESC").
		First(&snap).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "MarketDataRepository",
			"op":     "LatestFundamental",
			"ticker": ticker,
		}).WithError(err).Error("Failed to fetch latest fundamental snapshot")

		return nil, err
	}

	return &snap, nil
}

// PriceHistory fetches up to lookbackDays of daily prices for a ticker,
// ordered oldest to newest. Used by the volume-trend score.
func (r *MarketDataRepository) PriceHistory(
	ctx context.Context,
	ticker string,
	lookbackDays int,
) ([]model.Price, error) {

	if lookbackDays <= 0 {
		lookbackDays = 20
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "MarketDataRepository",
		"op":       "PriceHistory",
		"ticker":   ticker,
		"lookback": lookbackDays,
	}).Debug("Fetching price history")

	var prices []model.Price

	err := r.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("date DESC").
		Limit(lookbackDays).
		Find(&prices).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "MarketDataRepository",
			"op":       "PriceHistory",
			"ticker":   ticker,
			"lookback": lookbackDays,
		}).WithError(err).Error("Failed to fetch price history")

		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "MarketDataRepository",
		"op":          "PriceHistory",
		"ticker":      ticker,
		"rows_return": len(prices),
	}).Debug("Price history fetched")

	return prices, nil
}
