// Package pricing computes cart totals and the IVA breakdown for a sale.
//
// Cart lines are a closed set of kinds: hardware products (the only taxed
// kind), gas cylinders, and washing-machine rentals. The same computation
// runs for the interactive preview and for the authoritative server-side
// totals persisted with a sale.
package pricing

import "github.com/shopspring/decimal"

// Line is a sale line of one of the three cart kinds.
type Line interface {
	// Base returns unit price times quantity.
	Base() decimal.Decimal
	// Tax returns the IVA contribution of the line.
	Tax() decimal.Decimal
}

// ProductLine is a hardware product line. TaxRate is a fraction in [0, 1];
// zero means the product is untaxed.
type ProductLine struct {
	UnitPrice decimal.Decimal
	Quantity  int
	TaxRate   decimal.Decimal
}

// Base implements Line.
func (l ProductLine) Base() decimal.Decimal {
	return lineBase(l.UnitPrice, l.Quantity)
}

// Tax implements Line.
func (l ProductLine) Tax() decimal.Decimal {
	if l.TaxRate.IsPositive() {
		return l.Base().Mul(l.TaxRate)
	}
	return decimal.Zero
}

// GasLine is a bottled-gas line. Exchange records whether the client handed
// in an empty cylinder; gas is never taxed.
type GasLine struct {
	UnitPrice decimal.Decimal
	Quantity  int
	Exchange  bool
}

// Base implements Line.
func (l GasLine) Base() decimal.Decimal {
	return lineBase(l.UnitPrice, l.Quantity)
}

// Tax implements Line.
func (l GasLine) Tax() decimal.Decimal { return decimal.Zero }

// WasherLine is a washing-machine rental line, untaxed.
type WasherLine struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Base implements Line.
func (l WasherLine) Base() decimal.Decimal {
	return lineBase(l.UnitPrice, l.Quantity)
}

// Tax implements Line.
func (l WasherLine) Tax() decimal.Decimal { return decimal.Zero }

// Breakdown aggregates the computed totals, each rounded to 2 decimals.
type Breakdown struct {
	SubtotalNeto decimal.Decimal `json:"subtotal_neto"`
	IVATotal     decimal.Decimal `json:"iva_total"`
	TotalFinal   decimal.Decimal `json:"total_final"`
}

// Compute derives the tax breakdown for the given lines. Pure function; lines
// with non-positive quantity contribute nothing.
func Compute(lines []Line) Breakdown {
	subtotal := decimal.Zero
	iva := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Base())
		iva = iva.Add(line.Tax())
	}
	subtotal = subtotal.Round(2)
	iva = iva.Round(2)
	return Breakdown{
		SubtotalNeto: subtotal,
		IVATotal:     iva,
		TotalFinal:   subtotal.Add(iva),
	}
}

func lineBase(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
