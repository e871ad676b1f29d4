package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fergasdev/backend-fergas/internal/catalog"
)

// Sale is a committed sale with its line items, payments, and credit
// installments populated.
type Sale struct {
	ID           uuid.UUID       `json:"id"`
	UsuarioID    uuid.UUID       `json:"userId"`
	ClienteID    uuid.UUID       `json:"clientId"`
	SubtotalNeto decimal.Decimal `json:"subtotal_neto"`
	IVATotal     decimal.Decimal `json:"iva_total"`
	Total        decimal.Decimal `json:"total"`
	MetodoPago   string          `json:"metodo_pago"`
	Fecha        time.Time       `json:"fecha"`

	Items   []SaleItem      `json:"items"`
	Pagos   []Payment       `json:"pagos"`
	Cuotas  []Installment   `json:"creditInstallments,omitempty"`
	Cliente *catalog.Client `json:"cliente,omitempty"`
}

// SaleItem is one persisted line of a sale. Exactly one of ProductoID or
// GasTipoID is set.
type SaleItem struct {
	ID            uuid.UUID       `json:"id"`
	VentaID       uuid.UUID       `json:"ventaId"`
	ProductoID    *uuid.UUID      `json:"productId,omitempty"`
	GasTipoID     *uuid.UUID      `json:"gasTypeId,omitempty"`
	Cantidad      int             `json:"cantidad"`
	PrecioUnit    decimal.Decimal `json:"precio_unit"`
	RecibioEnvase bool            `json:"recibio_envase"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	IVAMonto      decimal.Decimal `json:"iva_monto"`
}

// Payment is one persisted payment slot of a sale.
type Payment struct {
	ID      uuid.UUID       `json:"id"`
	VentaID uuid.UUID       `json:"ventaId"`
	Metodo  string          `json:"metodo"`
	Monto   decimal.Decimal `json:"monto"`
}

// Installment is a persisted credit installment. Immutable once written.
type Installment struct {
	ID          uuid.UUID       `json:"id"`
	VentaID     uuid.UUID       `json:"ventaId"`
	Numero      int             `json:"installmentNumber"`
	Monto       decimal.Decimal `json:"amountDue"`
	Vencimiento time.Time       `json:"dueDate"`
	Estado      string          `json:"estado"`
}
