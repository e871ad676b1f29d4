package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTaxedProducts(t *testing.T) {
	b := Compute([]Line{
		ProductLine{UnitPrice: dec("100.00"), Quantity: 2, TaxRate: dec("0.21")},
		ProductLine{UnitPrice: dec("50.00"), Quantity: 1, TaxRate: dec("0.105")},
	})

	require.Equal(t, "250.00", b.SubtotalNeto.StringFixed(2))
	require.Equal(t, "47.25", b.IVATotal.StringFixed(2))
	require.Equal(t, "297.25", b.TotalFinal.StringFixed(2))
}

func TestComputeGasAndWasherAreUntaxed(t *testing.T) {
	b := Compute([]Line{
		GasLine{UnitPrice: dec("80.00"), Quantity: 3, Exchange: true},
		WasherLine{UnitPrice: dec("500.00"), Quantity: 1},
	})

	require.Equal(t, "0.00", b.IVATotal.StringFixed(2))
	require.Equal(t, "740.00", b.SubtotalNeto.StringFixed(2))
	require.True(t, b.SubtotalNeto.Equal(b.TotalFinal), "without IVA subtotal equals total")
}

func TestComputeUntaxedProduct(t *testing.T) {
	b := Compute([]Line{
		ProductLine{UnitPrice: dec("10.00"), Quantity: 5, TaxRate: decimal.Zero},
	})
	require.Equal(t, "0.00", b.IVATotal.StringFixed(2))
	require.Equal(t, "50.00", b.TotalFinal.StringFixed(2))
}

func TestComputeMixedCart(t *testing.T) {
	b := Compute([]Line{
		ProductLine{UnitPrice: dec("100.00"), Quantity: 1, TaxRate: dec("0.21")},
		GasLine{UnitPrice: dec("50.00"), Quantity: 2},
	})
	require.Equal(t, "200.00", b.SubtotalNeto.StringFixed(2))
	require.Equal(t, "21.00", b.IVATotal.StringFixed(2))
	require.Equal(t, "221.00", b.TotalFinal.StringFixed(2))
}

func TestComputeRounding(t *testing.T) {
	// 3 × 33.333 = 99.999 → 100.00; tax 21% of 99.999 = 21.0 (rounded from 20.99979).
	b := Compute([]Line{
		ProductLine{UnitPrice: dec("33.333"), Quantity: 3, TaxRate: dec("0.21")},
	})
	require.Equal(t, "100.00", b.SubtotalNeto.StringFixed(2))
	require.Equal(t, "21.00", b.IVATotal.StringFixed(2))
	require.Equal(t, "121.00", b.TotalFinal.StringFixed(2))
}

func TestComputeIgnoresNonPositiveQuantities(t *testing.T) {
	b := Compute([]Line{
		ProductLine{UnitPrice: dec("100.00"), Quantity: 0, TaxRate: dec("0.21")},
		GasLine{UnitPrice: dec("50.00"), Quantity: -1},
	})
	require.Equal(t, "0.00", b.TotalFinal.StringFixed(2))
}

func TestComputeEmptyCart(t *testing.T) {
	b := Compute(nil)
	require.Equal(t, "0.00", b.SubtotalNeto.StringFixed(2))
	require.Equal(t, "0.00", b.IVATotal.StringFixed(2))
	require.Equal(t, "0.00", b.TotalFinal.StringFixed(2))
}
