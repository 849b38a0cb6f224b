package model

import "time"

// Position is the ledger row for a single holding, unique per (user, ticker).
// A position exists only while quantity > 0; a sell that brings quantity to
// zero deletes the row, and a later buy for the same ticker opens a fresh one.
type Position struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"uniqueIndex:idx_positions_user_ticker" json:"user_id"`
	Ticker string `gorm:"size:20;uniqueIndex:idx_positions_user_ticker" json:"ticker"`
	Sector string `gorm:"size:100" json:"sector"`

	Quantity int64 `json:"quantity"`
	// AvgPrice is the quantity-weighted average of every buy fill since the
	// position was opened. It resets only by the row being deleted and a new
	// position opened later.
	AvgPrice         float64 `json:"avg_price"`
	CurrentPrice     float64 `json:"current_price"`
	InvestedAmount   float64 `json:"invested_amount"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	UnrealizedPnlPct float64 `json:"unrealized_pnl_pct"`
	RealizedPnl      float64 `json:"realized_pnl"`
	TotalCommission  float64 `json:"total_commission"`
	TotalTax         float64 `json:"total_tax"`

	StopLossPrice   float64 `json:"stop_loss_price"`
	TakeProfitPrice float64 `json:"take_profit_price"`

	TrailingStopEnabled       bool    `gorm:"not null;default:false" json:"trailing_stop_enabled"`
	TrailingStopPct           float64 `json:"trailing_stop_pct"`
	HighestPriceSincePurchase float64 `json:"highest_price_since_purchase"`

	FirstPurchaseDate   time.Time `json:"first_purchase_date"`
	LastTransactionDate time.Time `json:"last_transaction_date"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
