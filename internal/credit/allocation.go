package credit

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/fergasdev/backend-fergas/internal/common"
)

// Method is a payment method for one slot.
type Method string

const (
	MethodCash     Method = "efectivo"
	MethodTransfer Method = "transferencia"
	MethodCard     Method = "tarjeta"
	MethodCredit   Method = "credito"
)

// KnownMethod reports whether m is one of the accepted payment methods.
func KnownMethod(m Method) bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard, MethodCredit:
		return true
	}
	return false
}

// Slot is one payment slot. A credit slot's amount is always derived from the
// total minus the other slots and is never set directly.
type Slot struct {
	Method Method
	Amount decimal.Decimal
}

// Allocation resolves up to two payment slots against a sale total. It
// replaces the ambient client-side slot state with an explicit value the
// handlers operate on.
type Allocation struct {
	Total         decimal.Decimal
	Slots         []Slot
	HasClient     bool
	PlanConfirmed bool
}

// NewAllocation starts with a single cash slot covering the total.
func NewAllocation(total decimal.Decimal) *Allocation {
	if total.IsNegative() {
		total = decimal.Zero
	}
	return &Allocation{
		Total: total,
		Slots: []Slot{{Method: MethodCash, Amount: total}},
	}
}

// SetMethod changes the method of slot i. Selecting credit requires a client;
// leaving credit on the only credit slot discards the installment plan.
func (a *Allocation) SetMethod(i int, m Method) error {
	if i < 0 || i >= len(a.Slots) {
		return common.NewAppError("VALIDATION_ERROR", "slot de pago inválido", http.StatusBadRequest, nil)
	}
	if !KnownMethod(m) {
		return common.NewAppError("VALIDATION_ERROR", "método de pago inválido", http.StatusBadRequest, nil)
	}
	if m == MethodCredit && !a.HasClient {
		return common.NewAppError("VALIDATION_ERROR", "debe seleccionar un cliente para vender a crédito", http.StatusBadRequest, nil)
	}
	wasCredit := a.Slots[i].Method == MethodCredit
	a.Slots[i].Method = m
	if wasCredit && m != MethodCredit && !a.hasCredit() {
		a.PlanConfirmed = false
	}
	a.resolve()
	return nil
}

// SetAmount sets the user-entered amount of slot i. Credit slot amounts are
// derived and cannot be edited.
func (a *Allocation) SetAmount(i int, amount decimal.Decimal) error {
	if i < 0 || i >= len(a.Slots) {
		return common.NewAppError("VALIDATION_ERROR", "slot de pago inválido", http.StatusBadRequest, nil)
	}
	if a.Slots[i].Method == MethodCredit {
		return common.NewAppError("VALIDATION_ERROR", "el monto a crédito se calcula automáticamente", http.StatusBadRequest, nil)
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	a.Slots[i].Amount = amount
	a.resolve()
	return nil
}

// ConfirmPlan marks the installment schedule as confirmed for checkout.
func (a *Allocation) ConfirmPlan() { a.PlanConfirmed = true }

// FinancedBalance is the amount carried by credit slots.
func (a *Allocation) FinancedBalance() decimal.Decimal {
	balance := decimal.Zero
	for _, s := range a.Slots {
		if s.Method == MethodCredit {
			balance = balance.Add(s.Amount)
		}
	}
	return balance
}

// Validate gates checkout: every slot must carry a positive amount, the slots
// must cover the total, and a financed balance requires a confirmed schedule.
func (a *Allocation) Validate() error {
	covered := decimal.Zero
	for _, s := range a.Slots {
		if !s.Amount.IsPositive() {
			return common.NewAppError("VALIDATION_ERROR", "pago incompleto", http.StatusBadRequest, nil)
		}
		covered = covered.Add(s.Amount)
	}
	if !covered.Equal(a.Total) {
		return common.NewAppError("VALIDATION_ERROR", "pago incompleto", http.StatusBadRequest, nil)
	}
	if a.FinancedBalance().IsPositive() && !a.PlanConfirmed {
		return common.NewAppError("VALIDATION_ERROR", "pago incompleto", http.StatusBadRequest, nil)
	}
	return nil
}

// resolve recomputes derived amounts: credit slots absorb the remainder, and
// a partial first slot spawns a second slot for the difference.
func (a *Allocation) resolve() {
	if len(a.Slots) == 0 {
		return
	}

	// Credit amounts are always total minus the other slots.
	if a.hasCredit() {
		others := decimal.Zero
		for _, s := range a.Slots {
			if s.Method != MethodCredit {
				others = others.Add(s.Amount)
			}
		}
		remainder := a.Total.Sub(others)
		if remainder.IsNegative() {
			remainder = decimal.Zero
		}
		for i := range a.Slots {
			if a.Slots[i].Method == MethodCredit {
				a.Slots[i].Amount = remainder
				// only one credit slot ever exists
				break
			}
		}
		return
	}

	first := a.Slots[0]
	if first.Amount.LessThan(a.Total) {
		rest := a.Total.Sub(first.Amount)
		if len(a.Slots) == 1 {
			a.Slots = append(a.Slots, Slot{Method: MethodCash, Amount: rest})
		} else {
			a.Slots[1].Amount = rest
		}
	} else if len(a.Slots) > 1 {
		a.Slots = a.Slots[:1]
	}
}

func (a *Allocation) hasCredit() bool {
	for _, s := range a.Slots {
		if s.Method == MethodCredit {
			return true
		}
	}
	return false
}
