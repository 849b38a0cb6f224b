package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/database"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

// PositionRepository handles read/write operations for the position ledger.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main
// read/write database.
func NewPositionRepository() *PositionRepository {
	logger.WithField("component", "PositionRepository").
		Info("Creating new PositionRepository with MainDB")

	return &PositionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindByUserAndTicker fetches the single position for (user, ticker).
// Returns (nil, nil) if the user holds no position in the ticker.
func (r *PositionRepository) FindByUserAndTicker(
	ctx context.Context,
	userID uint,
	ticker string,
) (*model.Position, error) {

	logger.WithFields(map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "FindByUserAndTicker",
		"user_id": userID,
		"ticker":  ticker,
	}).Debug("Fetching position")

	var position model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ticker = ?", userID, ticker).
		First(&position).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindByUserAndTicker",
			"user_id": userID,
			"ticker":  ticker,
		}).WithError(err).Error("Failed to fetch position")

		return nil, err
	}

	return &position, nil
}

// FindAllByUser lists every open position for a user, ordered by ticker.
func (r *PositionRepository) FindAllByUser(
	ctx context.Context,
	userID uint,
) ([]model.Position, error) {

	logger.WithFields(map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "FindAllByUser",
		"user_id": userID,
	}).Debug("Fetching all positions for user")

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("ticker ASC").
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindAllByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch positions")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "FindAllByUser",
		"user_id":     userID,
		"rows_return": len(positions),
	}).Info("Positions fetched")

	return positions, nil
}

// Create inserts a new position row for a first buy.
func (r *PositionRepository) Create(
	ctx context.Context,
	position *model.Position,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "Create",
		"user_id": position.UserID,
		"ticker":  position.Ticker,
		"qty":     position.Quantity,
	}).Debug("Creating position")

	err := r.db.WithContext(ctx).Create(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "Create",
			"ticker": position.Ticker,
		}).WithError(err).Error("Failed to create position")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "Create",
		"position_id": position.ID,
		"ticker":      position.Ticker,
	}).Info("Position created")

	return nil
}

// Update persists all changed fields of the given position.
func (r *PositionRepository) Update(
	ctx context.Context,
	position *model.Position,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "Update",
		"position_id": position.ID,
		"ticker":      position.Ticker,
		"qty":         position.Quantity,
	}).Debug("Updating position")

	err := r.db.WithContext(ctx).Save(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "Update",
			"position_id": position.ID,
		}).WithError(err).Error("Failed to update position")

		return err
	}

	return nil
}

// Delete removes a position row. A deleted row is how a flat holding is
// represented.
func (r *PositionRepository) Delete(
	ctx context.Context,
	position *model.Position,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "Delete",
		"position_id": position.ID,
		"ticker":      position.Ticker,
	}).Debug("Deleting position")

	err := r.db.WithContext(ctx).Delete(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "Delete",
			"position_id": position.ID,
		}).WithError(err).Error("Failed to delete position")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "PositionRepository",
		"op":     "Delete",
		"ticker": position.Ticker,
	}).Info("Position closed")

	return nil
}

// CountByUser returns the number of open positions a user holds.
func (r *PositionRepository) CountByUser(
	ctx context.Context,
	userID uint,
) (int64, error) {

	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("user_id = ?", userID).
		Count(&count).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "CountByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to count positions")

		return 0, err
	}

	return count, nil
}

// TotalInvested sums the invested amount over every open position of a user.
func (r *PositionRepository) TotalInvested(
	ctx context.Context,
	userID uint,
) (float64, error) {

	var total float64

	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(invested_amount), 0)").
		Scan(&total).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "TotalInvested",
			"user_id": userID,
		}).WithError(err).Error("Failed to sum invested amount")

		return 0, err
	}

	return total, nil
}

// TotalInvestedBySector sums the invested amount over a user's open
// positions in one sector. Feeds the sector-concentration gate.
func (r *PositionRepository) TotalInvestedBySector(
	ctx context.Context,
	userID uint,
	sector string,
) (float64, error) {

	var total float64

	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("user_id = ? AND sector = ?", userID, sector).
		Select("COALESCE(SUM(invested_amount), 0)").
		Scan(&total).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "TotalInvestedBySector",
			"user_id": userID,
			"sector":  sector,
		}).WithError(err).Error("Failed to sum invested amount by sector")

		return 0, err
	}

	return total, nil
}
