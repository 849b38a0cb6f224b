package migrations

import "gorm.io/gorm"

// backfillTrailingStopAnchors seeds the trailing-stop high-water mark on
// positions created before trailing stops existed. The average price is the
// most conservative anchor we have for old rows; the monitor ratchets it up
// from the next price observation onward.
func backfillTrailingStopAnchors(db *gorm.DB) error {
	err := db.Exec(`
		UPDATE positions
		SET highest_price_since_purchase = GREATEST(avg_price, current_price)
		WHERE highest_price_since_purchase <= 0
	`).Error
	if err != nil {
		return err
	}

	return db.Exec(`
		UPDATE positions
		SET trailing_stop_pct = 10
		WHERE trailing_stop_enabled = TRUE AND trailing_stop_pct <= 0
	`).Error
}
