package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// ----- session labels -----

type Session string

const (
	SessionWeekendHoliday Session = "weekend_holiday"
	SessionPreMarket      Session = "pre_market"
	SessionRegular        Session = "regular_session"
	SessionClosingAuction Session = "closing_auction"
	SessionAfterHours     Session = "after_hours"
	SessionClosed         Session = "closed"

	OffsetDaysForSubstitute = 1
)

// ----- config for multipliers -----

// SessionSizeConfig scales position sizes by KRX session phase. Entries in
// the closing auction carry the overnight gap, so they run smaller by
// default; after-hours block trading is thin and gets cut hardest.
type SessionSizeConfig struct {
	RegularMultiplier        decimal.Decimal
	ClosingAuctionMultiplier decimal.Decimal
	AfterHoursMultiplier     decimal.Decimal

	AllowAfterHours bool
}

func DefaultSessionSizeConfig() SessionSizeConfig {
	return SessionSizeConfig{
		RegularMultiplier:        decimal.NewFromFloat(1.0),
		ClosingAuctionMultiplier: decimal.NewFromFloat(0.5),
		AfterHoursMultiplier:     decimal.NewFromFloat(0.25),
		AllowAfterHours:          false,
	}
}

// ----- public API -----

// CalculateSizeBySession scales baseSize for the KRX session phase at now.
// Returns zero outside tradable phases and the detected session either way.
func CalculateSizeBySession(
	baseSize decimal.Decimal,
	now time.Time,
	cfg SessionSizeConfig,
) (decimal.Decimal, Session) {
	sess := DetectSession(now)

	if baseSize.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, sess
	}

	mult := sizeMultiplierForSession(sess, cfg)
	return baseSize.Mul(mult), sess
}

// CanEnterAt reports whether new entries are allowed in the session at now.
func CanEnterAt(now time.Time, cfg SessionSizeConfig) (bool, Session) {
	sess := DetectSession(now)
	switch sess {
	case SessionRegular, SessionClosingAuction:
		return true, sess
	case SessionAfterHours:
		return cfg.AllowAfterHours, sess
	default:
		return false, sess
	}
}

// DetectSession maps now to a KRX session phase, evaluated in KST.
func DetectSession(now time.Time) Session {
	t := getSeoulTime(now)

	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday || isKRXHoliday(t) {
		return SessionWeekendHoliday
	}

	switch {
	case isPreMarket(t):
		return SessionPreMarket
	case isClosingAuction(t):
		return SessionClosingAuction
	case isRegularSession(t):
		return SessionRegular
	case isAfterHours(t):
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// ----- helpers -----

func getSeoulTime(t time.Time) time.Time {
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return t.In(time.FixedZone("KST", 9*60*60))
	}
	return t.In(seoul)
}

func sizeMultiplierForSession(s Session, cfg SessionSizeConfig) decimal.Decimal {
	switch s {
	case SessionRegular:
		return cfg.RegularMultiplier
	case SessionClosingAuction:
		return cfg.ClosingAuctionMultiplier
	case SessionAfterHours:
		if cfg.AllowAfterHours {
			return cfg.AfterHoursMultiplier
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// isPreMarket opening auction order collection, 08:30-09:00 KST.
func isPreMarket(t time.Time) bool {
	m := minuteOfDay(t)
	return m >= 8*60+30 && m < 9*60
}

// isRegularSession continuous trading, 09:00-15:30 KST. The closing
// auction window is carved out separately.
func isRegularSession(t time.Time) bool {
	m := minuteOfDay(t)
	return m >= 9*60 && m < 15*60+30
}

// isClosingAuction closing single-price auction, 15:20-15:30 KST.
func isClosingAuction(t time.Time) bool {
	m := minuteOfDay(t)
	return m >= 15*60+20 && m < 15*60+30
}

// isAfterHours after-hours single-price trading, 15:40-18:00 KST.
func isAfterHours(t time.Time) bool {
	m := minuteOfDay(t)
	return m >= 15*60+40 && m < 18*60
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// isKRXHoliday covers the fixed-date KRX closure days. The lunar holidays
// (Seollal, Chuseok, Buddha's Birthday) shift year to year and come from
// the exchange calendar table when one is loaded.
func isKRXHoliday(t time.Time) bool {
	year := t.Year()

	newYearsDay := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)

	// March 1st Movement Day, Children's Day and National Foundation Day
	// carry substitute holidays when they land on a weekend.
	independenceMovementDay := withSubstitute(time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC))
	childrensDay := withSubstitute(time.Date(year, time.May, 5, 0, 0, 0, 0, time.UTC))
	memorialDay := time.Date(year, time.June, 6, 0, 0, 0, 0, time.UTC)
	liberationDay := withSubstitute(time.Date(year, time.August, 15, 0, 0, 0, 0, time.UTC))
	foundationDay := withSubstitute(time.Date(year, time.October, 3, 0, 0, 0, 0, time.UTC))
	hangulDay := withSubstitute(time.Date(year, time.October, 9, 0, 0, 0, 0, time.UTC))
	laborDay := time.Date(year, time.May, 1, 0, 0, 0, 0, time.UTC)
	christmasDay := time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)

	// Last trading day of the year: KRX closes on December 31 (or the
	// preceding business day when the 31st is a weekend).
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	for yearEnd.Weekday() == time.Saturday || yearEnd.Weekday() == time.Sunday {
		yearEnd = yearEnd.AddDate(0, 0, -1)
	}

	holidays := []time.Time{
		newYearsDay,
		independenceMovementDay,
		laborDay,
		childrensDay,
		memorialDay,
		liberationDay,
		foundationDay,
		hangulDay,
		christmasDay,
		yearEnd,
	}
	return isDateAmong(t, holidays)
}

// withSubstitute moves a holiday landing on a weekend to the following
// Monday, per the Korean substitute holiday rule.
func withSubstitute(d time.Time) time.Time {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, OffsetDaysForSubstitute)
	}
	return d
}

// isDateAmong checks if the given date matches any date in the list.
func isDateAmong(t time.Time, dates []time.Time) bool {
	for _, d := range dates {
		if t.Format("2006-01-02") == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
