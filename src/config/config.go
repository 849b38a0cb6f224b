package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// FeeStructure describes the KRX cost model applied to every order. The
// agriculture/fishery levy is charged on the transaction tax itself, not on
// the gross amount; every other rate applies to the gross amount.
type FeeStructure struct {
	CommissionRatePct     float64 `envconfig:"FEE_COMMISSION_RATE_PCT" default:"0.015"`
	MinCommission         float64 `envconfig:"FEE_MIN_COMMISSION" default:"0"`
	TransactionTaxRatePct float64 `envconfig:"FEE_TRANSACTION_TAX_RATE_PCT" default:"0.23"`
	AgriFishTaxRatePct    float64 `envconfig:"FEE_AGRI_FISH_TAX_RATE_PCT" default:"0.15"`
	ExchangeFeeRatePct    float64 `envconfig:"FEE_EXCHANGE_FEE_RATE_PCT" default:"0"`
	ClearingFeeRatePct    float64 `envconfig:"FEE_CLEARING_FEE_RATE_PCT" default:"0"`
}

// Validate rejects negative rates. A bad fee structure is an operator error
// and must abort startup, never be swallowed at runtime.
func (f FeeStructure) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"commission rate", f.CommissionRatePct},
		{"min commission", f.MinCommission},
		{"transaction tax rate", f.TransactionTaxRatePct},
		{"agri/fish tax rate", f.AgriFishTaxRatePct},
		{"exchange fee rate", f.ExchangeFeeRatePct},
		{"clearing fee rate", f.ClearingFeeRatePct},
	}

	for _, c := range checks {
		if c.value < 0 {
			return fmt.Errorf("fee structure: %s must not be negative, got %v", c.name, c.value)
		}
	}

	return nil
}

// Config is the full configuration surface of the trading-decision pipeline.
// It is built once at process start and passed by value into each component
// constructor.
type Config struct {
	UserID uint `envconfig:"TRADING_USER_ID" default:"1"`
	DryRun bool `envconfig:"TRADING_DRY_RUN" default:"true"`

	InitialCapital float64 `envconfig:"INITIAL_CAPITAL" default:"100000000"`
	SizingMethod   string  `envconfig:"SIZING_METHOD" default:"fixed_fractional"`

	RiskTolerancePct   float64 `envconfig:"RISK_TOLERANCE_PCT" default:"2.0"`
	MaxPositionSizePct float64 `envconfig:"MAX_POSITION_SIZE_PCT" default:"10.0"`
	MinConvictionScore float64 `envconfig:"MIN_CONVICTION_SCORE" default:"60"`
	MinCompositeScore  float64 `envconfig:"MIN_COMPOSITE_SCORE" default:"60"`
	MinMomentumScore   float64 `envconfig:"MIN_MOMENTUM_SCORE" default:"50"`

	UseLimitOrders        bool    `envconfig:"USE_LIMIT_ORDERS" default:"false"`
	LimitOrderDiscountPct float64 `envconfig:"LIMIT_ORDER_DISCOUNT_PCT" default:"0.5"`

	MaxPositions              int     `envconfig:"MAX_POSITIONS" default:"20"`
	MaxConcentrationPct       float64 `envconfig:"MAX_CONCENTRATION_PCT" default:"30.0"`
	MaxSectorConcentrationPct float64 `envconfig:"MAX_SECTOR_CONCENTRATION_PCT" default:"40.0"`
	RequireRecentDataHours    int     `envconfig:"REQUIRE_RECENT_DATA_HOURS" default:"48"`
	MinDataQualityScore       float64 `envconfig:"MIN_DATA_QUALITY_SCORE" default:"75"`

	Fees FeeStructure
}

// Validate checks the whole configuration surface for operator mistakes.
func (c Config) Validate() error {
	if c.MaxPositions <= 0 {
		return fmt.Errorf("config: max positions must be positive, got %d", c.MaxPositions)
	}
	if c.MaxConcentrationPct <= 0 || c.MaxConcentrationPct > 100 {
		return fmt.Errorf("config: max concentration pct must be in (0,100], got %v", c.MaxConcentrationPct)
	}
	if c.MaxSectorConcentrationPct <= 0 || c.MaxSectorConcentrationPct > 100 {
		return fmt.Errorf("config: max sector concentration pct must be in (0,100], got %v", c.MaxSectorConcentrationPct)
	}
	if c.MinConvictionScore < 0 || c.MinConvictionScore > 100 {
		return fmt.Errorf("config: min conviction score must be in [0,100], got %v", c.MinConvictionScore)
	}
	if c.RequireRecentDataHours <= 0 {
		return fmt.Errorf("config: require recent data hours must be positive, got %d", c.RequireRecentDataHours)
	}
	if c.RiskTolerancePct <= 0 {
		return fmt.Errorf("config: risk tolerance pct must be positive, got %v", c.RiskTolerancePct)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("config: initial capital must be positive, got %v", c.InitialCapital)
	}

	return c.Fees.Validate()
}

// GetConfig loads the trading configuration from the environment.
func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
