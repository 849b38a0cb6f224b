package model

import "time"

const (
	OrderStatusPending   = "PENDING"
	OrderStatusExecuted  = "EXECUTED"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusFailed    = "FAILED"
)

const (
	OrderActionBuy  = "BUY"
	OrderActionSell = "SELL"
)

const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// Trade is the persisted record of a single order execution. Status moves
// PENDING -> EXECUTED on a live fill, or stays PENDING for dry runs until a
// cancel sets CANCELLED. EXECUTED, CANCELLED and FAILED are terminal.
type Trade struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OrderID string `gorm:"size:40;uniqueIndex" json:"order_id"`
	UserID  uint   `gorm:"index" json:"user_id"`
	Ticker  string `gorm:"size:20;index" json:"ticker"`

	Action    string `gorm:"size:10;not null" json:"action"`
	OrderType string `gorm:"size:10;not null" json:"order_type"`

	Quantity         int64   `json:"quantity"`
	Price            float64 `json:"price"`
	ExecutedPrice    float64 `json:"executed_price"`
	ExecutedQuantity int64   `json:"executed_quantity"`
	TotalAmount      float64 `json:"total_amount"`
	Commission       float64 `json:"commission"`
	Tax              float64 `json:"tax"`
	// RealizedPnl is set on executed sells only: fill versus the position
	// average at execution time, net of fees.
	RealizedPnl float64 `json:"realized_pnl"`

	Status   string `gorm:"size:20;not null;default:PENDING" json:"status"`
	Reason   string `gorm:"size:1024" json:"reason"`
	Strategy string `gorm:"size:100" json:"strategy"`

	CreatedAt   time.Time  `json:"created_at"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func (Trade) TableName() string {
	return "trades"
}

// IsTerminal reports whether the trade can no longer change status.
func (t *Trade) IsTerminal() bool {
	switch t.Status {
	case OrderStatusExecuted, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
}
