// Package credit implements the credit-sale settlement rules: installment
// schedule generation, payment slot allocation, and the overdue sweep.
package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestMode selects how interest is applied to the financed principal.
type InterestMode string

const (
	InterestNone    InterestMode = "none"
	InterestPercent InterestMode = "percent"
	InterestFixed   InterestMode = "fixed"
)

// Valid day intervals between installments. Monthly is a fixed 30-day
// approximation, not calendar-month aware.
const (
	FrequencyDaily    = 1
	FrequencyWeekly   = 7
	FrequencyBiweekly = 15
	FrequencyMonthly  = 30
)

// Installment is one element of a payment schedule.
type Installment struct {
	Number    int
	DueDate   time.Time
	AmountDue decimal.Decimal
}

// Schedule is a generated installment plan.
type Schedule struct {
	Installments      []Installment
	TotalWithInterest decimal.Decimal
}

// Tolerance under which the schedule sum is considered reconciled with the
// financed total.
var tolerance = decimal.NewFromFloat(0.01)

// GenerateSchedule produces a due-date/amount schedule for the given
// principal. Malformed input is clamped rather than rejected: negative
// principal or interest becomes zero, count below one becomes one, and an
// unknown frequency falls back to monthly. All but the last installment carry
// the rounded equal share; the last receives the remaining balance so the
// schedule sums exactly to the financed total.
func GenerateSchedule(principal decimal.Decimal, count int, firstDue time.Time, frequencyDays int, mode InterestMode, interestValue decimal.Decimal) Schedule {
	if principal.IsNegative() {
		principal = decimal.Zero
	}
	if interestValue.IsNegative() {
		interestValue = decimal.Zero
	}
	if count < 1 {
		count = 1
	}
	frequencyDays = normalizeFrequency(frequencyDays)

	total := totalWithInterest(principal, mode, interestValue)
	base := total.Div(decimal.NewFromInt(int64(count))).Round(2)

	installments := make([]Installment, count)
	paid := decimal.Zero
	for i := 0; i < count; i++ {
		amount := base
		if i == count-1 {
			amount = total.Sub(paid).Round(2)
		}
		installments[i] = Installment{
			Number:    i + 1,
			DueDate:   firstDue.AddDate(0, 0, i*frequencyDays),
			AmountDue: amount,
		}
		paid = paid.Add(amount)
	}

	schedule := Schedule{Installments: installments, TotalWithInterest: total}
	schedule.Reconcile()
	return schedule
}

// Reconcile folds any residual rounding drift beyond the tolerance into the
// last installment. Harmless on a freshly generated schedule; it matters when
// a schedule has been regenerated repeatedly with edited parameters.
func (s *Schedule) Reconcile() {
	if len(s.Installments) == 0 {
		return
	}
	sum := decimal.Zero
	for _, inst := range s.Installments {
		sum = sum.Add(inst.AmountDue)
	}
	residual := s.TotalWithInterest.Sub(sum)
	if residual.Abs().GreaterThan(tolerance) {
		last := len(s.Installments) - 1
		s.Installments[last].AmountDue = s.Installments[last].AmountDue.Add(residual).Round(2)
	}
}

// Sum returns the total of all installment amounts.
func (s Schedule) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, inst := range s.Installments {
		sum = sum.Add(inst.AmountDue)
	}
	return sum
}

func totalWithInterest(principal decimal.Decimal, mode InterestMode, value decimal.Decimal) decimal.Decimal {
	switch mode {
	case InterestPercent:
		factor := decimal.NewFromInt(1).Add(value.Div(decimal.NewFromInt(100)))
		return principal.Mul(factor).Round(2)
	case InterestFixed:
		return principal.Add(value).Round(2)
	default:
		return principal.Round(2)
	}
}

func normalizeFrequency(days int) int {
	switch days {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return days
	default:
		return FrequencyMonthly
	}
}
