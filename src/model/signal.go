package model

import "time"

type SignalType string

const (
	SignalTypeEntryBuy SignalType = "entry_buy"
	SignalTypeExitSell SignalType = "exit_sell"
)

type SignalStrength string

const (
	StrengthWeak       SignalStrength = "weak"
	StrengthModerate   SignalStrength = "moderate"
	StrengthStrong     SignalStrength = "strong"
	StrengthVeryStrong SignalStrength = "very_strong"
)

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyNormal   Urgency = "normal"
	UrgencyLow      Urgency = "low"
)

// ConvictionScore blends the four 0-100 component scores into a single
// weighted total. It lives only inside the TradingSignal that references it
// and is never persisted.
type ConvictionScore struct {
	TotalScore float64 `json:"total_score"`

	ValueScore    float64 `json:"value_score"`
	MomentumScore float64 `json:"momentum_score"`
	VolumeScore   float64 `json:"volume_score"`
	QualityScore  float64 `json:"quality_score"`

	ValueWeight    float64 `json:"value_weight"`
	MomentumWeight float64 `json:"momentum_weight"`
	VolumeWeight   float64 `json:"volume_weight"`
	QualityWeight  float64 `json:"quality_weight"`

	Notes []string `json:"notes,omitempty"`
}

// TradingSignal is the in-memory hand-off between signal generation,
// validation and execution. Only its execution result (a Trade) is persisted.
// IsValid and ValidationWarnings are written exactly once, by the validator,
// from the ValidationResult it produces.
type TradingSignal struct {
	SignalID string         `json:"signal_id"`
	Ticker   string         `json:"ticker"`
	Sector   string         `json:"sector,omitempty"`
	Type     SignalType     `json:"signal_type"`
	Strength SignalStrength `json:"strength"`
	Urgency  Urgency        `json:"urgency"`

	Timestamp    time.Time `json:"timestamp"`
	CurrentPrice float64   `json:"current_price"`

	TargetPrice     *float64 `json:"target_price,omitempty"`
	StopLossPrice   *float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice *float64 `json:"take_profit_price,omitempty"`

	RecommendedShares int64   `json:"recommended_shares"`
	PositionValue     float64 `json:"position_value"`
	PositionPct       float64 `json:"position_pct"`

	OrderType  string   `json:"order_type"`
	LimitPrice *float64 `json:"limit_price,omitempty"`

	Conviction    *ConvictionScore `json:"conviction,omitempty"`
	Reasons       []string         `json:"reasons,omitempty"`
	KellyFraction *float64         `json:"kelly_fraction,omitempty"`

	ExpectedReturnPct float64 `json:"expected_return_pct"`
	RiskRewardRatio   float64 `json:"risk_reward_ratio"`

	// Metric snapshots carried along for the data-quality gate.
	Fundamentals     map[string]float64 `json:"fundamentals,omitempty"`
	Technicals       map[string]float64 `json:"technicals,omitempty"`
	DataQualityScore *float64           `json:"data_quality_score,omitempty"`

	IsValid            bool     `json:"is_valid"`
	ValidationWarnings []string `json:"validation_warnings,omitempty"`
}

// ValidationResult is the explicit outcome of running a signal through the
// validator gates. Reasons accumulate across every gate; a single failing
// gate makes the whole result invalid.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons,omitempty"`
}

// RiskMetricsSnapshot is the portfolio risk state consulted by validation
// and signal sizing. It is supplied by an external risk engine.
type RiskMetricsSnapshot struct {
	CashBalance             float64 `json:"cash_balance"`
	IsTradingHalted         bool    `json:"is_trading_halted"`
	TradingHaltReason       string  `json:"trading_halt_reason,omitempty"`
	CurrentDrawdownPct      float64 `json:"current_drawdown_pct"`
	TotalLossFromInitialPct float64 `json:"total_loss_from_initial_pct"`
	WinRate                 float64 `json:"win_rate"`
	AvgWinPct               float64 `json:"avg_win_pct"`
	AvgLossPct              float64 `json:"avg_loss_pct"`
}
