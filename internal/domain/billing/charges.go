package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// ChargePolicy holds the per-tenant knobs for recurring rent charges.
type ChargePolicy struct {
	// DueDay is the day of month rent falls due.
	DueDay int
	// GraceLastDay is the last day of month on which no late fee accrues.
	GraceLastDay int
	// PerDiemLateFee accrues for every started day past the grace window.
	PerDiemLateFee valueobject.Money
}

// Moving in on or before this day of month charges the full month
// instead of a prorated amount.
const fullMonthMoveInCutoff = 5

// DefaultChargePolicy returns the standard policy: due on the 1st,
// grace through the 5th, 50 rupees per late day.
func DefaultChargePolicy() ChargePolicy {
	return ChargePolicy{
		DueDay:         1,
		GraceLastDay:   5,
		PerDiemLateFee: valueobject.NewMoneyINR(decimal.NewFromInt(50)),
	}
}

// GraceEnd returns the instant the grace window closes for a billing
// month: the last representable moment of GraceLastDay.
func GraceEnd(year int, month time.Month, graceLastDay int, loc *time.Location) time.Time {
	return time.Date(year, month, graceLastDay, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}

// LateFee computes the late fee owed at evalDate for the given billing
// month. Zero at or before the grace end; afterwards every started
// 24-hour block counts as one full late day, so one second past the
// window already bills one day.
func LateFee(evalDate time.Time, year int, month time.Month, graceLastDay int, perDiem valueobject.Money) valueobject.Money {
	graceEnd := GraceEnd(year, month, graceLastDay, evalDate.Location())
	if !evalDate.After(graceEnd) {
		return valueobject.Zero(perDiem.Currency())
	}

	elapsed := evalDate.Sub(graceEnd)
	days := int64(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) > 0 {
		days++
	}
	return perDiem.MultiplyByInt(days)
}

// PeriodTerms describes the first billing period derived from a
// resident's move-in date.
type PeriodTerms struct {
	BaseAmount  valueobject.Money
	IsProrated  bool
	DueDate     time.Time
	WindowStart time.Time
	WindowEnd   time.Time
}

// FirstPeriodTerms derives the opening rent period for a move-in.
// Moving in between the 1st and the 5th charges the full month, due on
// the policy due day. Any later move-in prorates by the remaining days
// of the month (move-in day inclusive) and falls due on the move-in
// date itself.
func FirstPeriodTerms(moveIn time.Time, monthlyRent valueobject.Money, policy ChargePolicy) PeriodTerms {
	year, month, day := moveIn.Date()
	loc := moveIn.Location()
	monthEnd := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	daysInMonth := monthEnd.Day()

	if day <= fullMonthMoveInCutoff {
		return PeriodTerms{
			BaseAmount:  monthlyRent,
			IsProrated:  false,
			DueDate:     time.Date(year, month, policy.DueDay, 0, 0, 0, 0, loc),
			WindowStart: time.Date(year, month, 1, 0, 0, 0, 0, loc),
			WindowEnd:   monthEnd,
		}
	}

	remaining := daysInMonth - day + 1
	prorated := monthlyRent.Amount().
		Mul(decimal.NewFromInt(int64(remaining))).
		Div(decimal.NewFromInt(int64(daysInMonth))).
		Round(2)
	base, _ := valueobject.NewMoney(prorated, monthlyRent.Currency())

	return PeriodTerms{
		BaseAmount:  base,
		IsProrated:  true,
		DueDate:     time.Date(year, month, day, 0, 0, 0, 0, loc),
		WindowStart: time.Date(year, month, day, 0, 0, 0, 0, loc),
		WindowEnd:   monthEnd,
	}
}

// StandardPeriodTerms derives a regular (non-first) billing period for
// the given month.
func StandardPeriodTerms(year int, month time.Month, monthlyRent valueobject.Money, policy ChargePolicy, loc *time.Location) PeriodTerms {
	return PeriodTerms{
		BaseAmount:  monthlyRent,
		IsProrated:  false,
		DueDate:     time.Date(year, month, policy.DueDay, 0, 0, 0, 0, loc),
		WindowStart: time.Date(year, month, 1, 0, 0, 0, 0, loc),
		WindowEnd:   time.Date(year, month+1, 0, 0, 0, 0, 0, loc),
	}
}
