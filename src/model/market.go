package model

import "time"

// Price is a read-side daily price row produced by the data collectors.
type Price struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Ticker string    `gorm:"size:20;index:idx_prices_ticker_date" json:"ticker"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	Date   time.Time `gorm:"index:idx_prices_ticker_date" json:"date"`
}

func (Price) TableName() string {
	return "prices"
}

// CompositeScore is the externally calculated 0-100 score set for a ticker,
// consumed here as input. The upstream scorer owns this table.
type CompositeScore struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Ticker string `gorm:"size:20;index:idx_composite_ticker_date" json:"ticker"`

	CompositeScore float64 `json:"composite_score"`
	ValueScore     float64 `json:"value_score"`
	GrowthScore    float64 `json:"growth_score"`
	QualityScore   float64 `json:"quality_score"`
	MomentumScore  float64 `json:"momentum_score"`

	DataQualityScore *float64 `json:"data_quality_score,omitempty"`

	CalculatedAt time.Time `gorm:"index:idx_composite_ticker_date" json:"calculated_at"`
}

func (CompositeScore) TableName() string {
	return "composite_scores"
}

// TechnicalSnapshot holds the latest technical indicator values for a ticker.
type TechnicalSnapshot struct {
	ID         uint               `gorm:"primaryKey" json:"id"`
	Ticker     string             `gorm:"size:20;index" json:"ticker"`
	Metrics    map[string]float64 `gorm:"serializer:json" json:"metrics"`
	CapturedAt time.Time          `json:"captured_at"`
}

func (TechnicalSnapshot) TableName() string {
	return "technical_snapshots"
}

// FundamentalSnapshot holds the latest fundamental metric values for a ticker.
type FundamentalSnapshot struct {
	ID         uint               `gorm:"primaryKey" json:"id"`
	Ticker     string             `gorm:"size:20;index" json:"ticker"`
	Sector     string             `gorm:"size:100" json:"sector"`
	Metrics    map[string]float64 `gorm:"serializer:json" json:"metrics"`
	CapturedAt time.Time          `json:"captured_at"`
}

func (FundamentalSnapshot) TableName() string {
	return "fundamental_snapshots"
}
