package credit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewAllocationSingleCashSlot(t *testing.T) {
	a := NewAllocation(dec("150.00"))
	require.Len(t, a.Slots, 1)
	require.Equal(t, MethodCash, a.Slots[0].Method)
	require.True(t, a.Slots[0].Amount.Equal(dec("150.00")))
	require.NoError(t, a.Validate())
}

func TestPartialFirstSlotSpawnsSecond(t *testing.T) {
	a := NewAllocation(dec("100.00"))
	require.NoError(t, a.SetAmount(0, dec("60.00")))

	require.Len(t, a.Slots, 2)
	require.True(t, a.Slots[1].Amount.Equal(dec("40.00")))

	// Raising slot 1 back to the total removes slot 2.
	require.NoError(t, a.SetAmount(0, dec("100.00")))
	require.Len(t, a.Slots, 1)
}

func TestCreditRequiresClient(t *testing.T) {
	a := NewAllocation(dec("100.00"))
	err := a.SetMethod(0, MethodCredit)
	require.Error(t, err)
	require.Contains(t, err.Error(), "debe seleccionar un cliente")

	a.HasClient = true
	require.NoError(t, a.SetMethod(0, MethodCredit))
}

func TestCreditAmountIsAlwaysDerived(t *testing.T) {
	a := NewAllocation(dec("100.00"))
	a.HasClient = true

	// 60 cash, remainder on a derived credit slot.
	require.NoError(t, a.SetAmount(0, dec("60.00")))
	require.NoError(t, a.SetMethod(1, MethodCredit))
	require.True(t, a.Slots[1].Amount.Equal(dec("40.00")))
	require.True(t, a.FinancedBalance().Equal(dec("40.00")))

	// Editing the cash slot recomputes the credit slot.
	require.NoError(t, a.SetAmount(0, dec("25.00")))
	require.True(t, a.Slots[1].Amount.Equal(dec("75.00")))

	// The credit amount itself is never user-editable.
	err := a.SetAmount(1, dec("10.00"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "se calcula automáticamente")
}

func TestFullCreditSlotCoversTotal(t *testing.T) {
	a := NewAllocation(dec("250.00"))
	a.HasClient = true
	require.NoError(t, a.SetMethod(0, MethodCredit))
	require.True(t, a.Slots[0].Amount.Equal(dec("250.00")))
}

func TestLeavingCreditClearsPlan(t *testing.T) {
	a := NewAllocation(dec("100.00"))
	a.HasClient = true
	require.NoError(t, a.SetMethod(0, MethodCredit))
	a.ConfirmPlan()
	require.True(t, a.PlanConfirmed)

	require.NoError(t, a.SetMethod(0, MethodCash))
	require.False(t, a.PlanConfirmed, "switching away from credit must discard the plan")
}

func TestValidateBlocksIncompletePayment(t *testing.T) {
	t.Run("financed balance without confirmed plan", func(t *testing.T) {
		a := NewAllocation(dec("100.00"))
		a.HasClient = true
		require.NoError(t, a.SetMethod(0, MethodCredit))
		err := a.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "pago incompleto")

		a.ConfirmPlan()
		require.NoError(t, a.Validate())
	})

	t.Run("zero-amount slot", func(t *testing.T) {
		a := NewAllocation(dec("100.00"))
		require.NoError(t, a.SetAmount(0, decimal.Zero))
		require.Error(t, a.Validate())
	})
}

func TestSetMethodRejectsUnknown(t *testing.T) {
	a := NewAllocation(dec("100.00"))
	require.Error(t, a.SetMethod(0, Method("cheque")))
	require.Error(t, a.SetMethod(5, MethodCash))
}
