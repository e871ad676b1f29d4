package sales

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fergasdev/backend-fergas/internal/common"
	"github.com/fergasdev/backend-fergas/internal/credit"
	"github.com/fergasdev/backend-fergas/internal/obs"
	"github.com/fergasdev/backend-fergas/internal/pricing"
)

var reconcileTolerance = decimal.RequireFromString("0.01")

// Service implements the sale commit transaction and sales history reads.
type Service struct {
	Store          Store
	Logger         zerolog.Logger
	Validate       *validator.Validate
	WalkInClientID uuid.UUID
	Now            func() time.Time
}

// NewService constructs the sales service.
func NewService(store Store, logger zerolog.Logger, walkInClientID uuid.UUID) *Service {
	return &Service{
		Store:          store,
		Logger:         logger,
		Validate:       validator.New(),
		WalkInClientID: walkInClientID,
		Now:            time.Now,
	}
}

// CommitRequest is the POST /api/sales payload.
type CommitRequest struct {
	UserID   string      `json:"userId"`
	ClientID *string     `json:"clientId"`
	Items    []ItemInput `json:"items" validate:"required,min=1,dive"`
	// MetodoPago is the summary method shown on the sale. With multiple
	// payment slots it labels the primary one.
	MetodoPago         string             `json:"metodo_pago" validate:"required"`
	Pagos              []PaymentInput     `json:"pagos"`
	CreditInstallments []InstallmentInput `json:"creditInstallments"`
}

// ItemInput references either a product or a gas type.
type ItemInput struct {
	ProductID     *string         `json:"productId"`
	GasTypeID     *string         `json:"gasTypeId"`
	Cantidad      int             `json:"cantidad" validate:"gte=1"`
	PrecioUnit    decimal.Decimal `json:"precio_unit"`
	RecibioEnvase bool            `json:"recibio_envase"`
}

// PaymentInput is one payment slot of the request.
type PaymentInput struct {
	Metodo string          `json:"metodo" validate:"required"`
	Monto  decimal.Decimal `json:"monto"`
}

// InstallmentInput is one confirmed installment of the credit schedule.
// DueDate accepts ISO-8601 dates with or without a time component.
type InstallmentInput struct {
	Numero      int             `json:"installmentNumber" validate:"gte=1"`
	Monto       decimal.Decimal `json:"amountDue"`
	Vencimiento string          `json:"dueDate" validate:"required"`
}

// Commit validates and persists a sale atomically. authUserID is the
// authenticated user; a userId in the payload takes precedence so an admin
// terminal can register sales for another seller.
func (s *Service) Commit(ctx context.Context, authUserID string, req CommitRequest) (Sale, error) {
	if err := s.Validate.Struct(req); err != nil {
		return Sale{}, common.Validation("payload inválido: items y metodo_pago son obligatorios")
	}

	userID, err := resolveUserID(req.UserID, authUserID)
	if err != nil {
		return Sale{}, common.Validation("Usuario no válido")
	}
	clientID, explicitClient, err := s.resolveClientID(req.ClientID)
	if err != nil {
		return Sale{}, common.Validation("cliente no válido")
	}

	pagos, creditSale, financed, err := normalizePayments(req)
	if err != nil {
		return Sale{}, err
	}
	if creditSale {
		if !explicitClient {
			return Sale{}, common.Validation("debe seleccionar un cliente para vender a crédito")
		}
		if len(req.CreditInstallments) == 0 {
			return Sale{}, common.Validation("pago incompleto")
		}
		if financed.IsPositive() {
			if err := reconcileInstallments(req.CreditInstallments, financed); err != nil {
				return Sale{}, err
			}
		}
	}
	installments, err := parseInstallments(req.CreditInstallments)
	if err != nil {
		return Sale{}, err
	}

	var committed Sale
	err = s.Store.WithinTx(ctx, func(tx TxStore) error {
		exists, err := tx.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return common.Validation("Usuario no válido")
		}

		cliente, err := tx.GetClient(ctx, clientID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.Validation("cliente no válido")
			}
			return err
		}

		lines := make([]pricing.Line, 0, len(req.Items))
		items := make([]SaleItem, 0, len(req.Items))
		for _, in := range req.Items {
			item, line, err := s.applyItem(ctx, tx, in)
			if err != nil {
				return err
			}
			items = append(items, item)
			lines = append(lines, line)
		}

		breakdown := pricing.Compute(lines)
		committed = Sale{
			UsuarioID:    userID,
			ClienteID:    clientID,
			SubtotalNeto: breakdown.SubtotalNeto,
			IVATotal:     breakdown.IVATotal,
			Total:        breakdown.TotalFinal,
			MetodoPago:   req.MetodoPago,
		}

		// Payment amounts are validated against the server-computed total,
		// not whatever the client summed up.
		if len(pagos) == 0 {
			pagos = []Payment{{Metodo: req.MetodoPago, Monto: breakdown.TotalFinal}}
		} else if err := checkPaymentsCoverTotal(pagos, breakdown.TotalFinal); err != nil {
			return err
		}
		// A sale financed in full reconciles its schedule against the
		// authoritative total, known only now.
		if creditSale && !financed.IsPositive() {
			if err := reconcileInstallments(req.CreditInstallments, breakdown.TotalFinal); err != nil {
				return err
			}
		}

		saleID, fecha, err := tx.InsertSale(ctx, committed)
		if err != nil {
			return err
		}
		committed.ID = saleID
		committed.Fecha = fecha

		for i := range items {
			items[i].VentaID = saleID
			itemID, err := tx.InsertSaleItem(ctx, items[i])
			if err != nil {
				return err
			}
			items[i].ID = itemID
		}
		committed.Items = items

		committed.Pagos = make([]Payment, 0, len(pagos))
		for _, p := range pagos {
			payment := Payment{VentaID: saleID, Metodo: p.Metodo, Monto: p.Monto}
			payID, err := tx.InsertPayment(ctx, payment)
			if err != nil {
				return err
			}
			payment.ID = payID
			committed.Pagos = append(committed.Pagos, payment)
		}

		for i := range installments {
			installments[i].VentaID = saleID
			installments[i].Estado = "pendiente"
			cuotaID, err := tx.InsertInstallment(ctx, installments[i])
			if err != nil {
				return err
			}
			installments[i].ID = cuotaID
		}
		committed.Cuotas = installments
		committed.Cliente = &cliente
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	if obs.SalesCommittedTotal != nil {
		obs.SalesCommittedTotal.WithLabelValues(committed.MetodoPago).Inc()
	}
	s.Logger.Info().
		Str("sale_id", committed.ID.String()).
		Str("metodo_pago", committed.MetodoPago).
		Str("total", committed.Total.StringFixed(2)).
		Int("items", len(committed.Items)).
		Int("cuotas", len(committed.Cuotas)).
		Msg("sale committed")
	return committed, nil
}

// applyItem validates one item, mutates inventory, and returns the persisted
// row plus its pricing line.
func (s *Service) applyItem(ctx context.Context, tx TxStore, in ItemInput) (SaleItem, pricing.Line, error) {
	hasProduct := in.ProductID != nil && strings.TrimSpace(*in.ProductID) != ""
	hasGas := in.GasTypeID != nil && strings.TrimSpace(*in.GasTypeID) != ""
	if hasProduct == hasGas {
		return SaleItem{}, nil, common.Validation("Cada item debe referenciar productId o gasTypeId")
	}
	if in.Cantidad < 1 {
		return SaleItem{}, nil, common.Validation("cantidad debe ser al menos 1")
	}
	if in.PrecioUnit.IsNegative() {
		return SaleItem{}, nil, common.Validation("precio_unit no puede ser negativo")
	}

	qty := decimal.NewFromInt(int64(in.Cantidad))
	subtotal := in.PrecioUnit.Mul(qty).Round(2)

	if hasProduct {
		productID, err := uuid.Parse(strings.TrimSpace(*in.ProductID))
		if err != nil {
			return SaleItem{}, nil, common.Validation("productId inválido")
		}
		product, err := tx.GetProductForSale(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return SaleItem{}, nil, common.Validation("producto no encontrado")
			}
			return SaleItem{}, nil, err
		}
		applied, err := tx.DecrementProductStock(ctx, productID, in.Cantidad)
		if err != nil {
			return SaleItem{}, nil, err
		}
		if !applied {
			if obs.StockConflictTotal != nil {
				obs.StockConflictTotal.WithLabelValues("producto").Inc()
			}
			return SaleItem{}, nil, common.Validation("Stock insuficiente para producto " + product.Nombre)
		}

		line := pricing.ProductLine{UnitPrice: in.PrecioUnit, Quantity: in.Cantidad, TaxRate: product.IVARate}
		return SaleItem{
			ProductoID: &productID,
			Cantidad:   in.Cantidad,
			PrecioUnit: in.PrecioUnit,
			Subtotal:   subtotal,
			IVAMonto:   line.Tax().Round(2),
		}, line, nil
	}

	gasTypeID, err := uuid.Parse(strings.TrimSpace(*in.GasTypeID))
	if err != nil {
		return SaleItem{}, nil, common.Validation("gasTypeId inválido")
	}
	exists, err := tx.GasTypeExists(ctx, gasTypeID)
	if err != nil {
		return SaleItem{}, nil, err
	}
	if !exists {
		return SaleItem{}, nil, common.Validation("tipo de gas no encontrado")
	}
	applied, err := tx.DecrementGasFull(ctx, gasTypeID, in.Cantidad)
	if err != nil {
		return SaleItem{}, nil, err
	}
	if !applied {
		if obs.StockConflictTotal != nil {
			obs.StockConflictTotal.WithLabelValues("gas").Inc()
		}
		return SaleItem{}, nil, common.Validation("Stock de gas insuficiente")
	}
	if in.RecibioEnvase {
		if err := tx.IncrementGasEmpty(ctx, gasTypeID, in.Cantidad); err != nil {
			return SaleItem{}, nil, err
		}
	}

	line := pricing.GasLine{UnitPrice: in.PrecioUnit, Quantity: in.Cantidad, Exchange: in.RecibioEnvase}
	return SaleItem{
		GasTipoID:     &gasTypeID,
		Cantidad:      in.Cantidad,
		PrecioUnit:    in.PrecioUnit,
		RecibioEnvase: in.RecibioEnvase,
		Subtotal:      subtotal,
		IVAMonto:      decimal.Zero,
	}, line, nil
}

// List returns the paginated sales history.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Sale, int64, error) {
	return s.Store.ListSales(ctx, filter)
}

// Get loads one sale with items, payments, and installments.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := s.Store.GetSale(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, common.NewAppError("NOT_FOUND", "venta no encontrada", http.StatusNotFound, err)
		}
		return Sale{}, err
	}
	return sale, nil
}

func resolveUserID(payloadUserID, authUserID string) (uuid.UUID, error) {
	raw := strings.TrimSpace(payloadUserID)
	if raw == "" {
		raw = strings.TrimSpace(authUserID)
	}
	return uuid.Parse(raw)
}

// resolveClientID falls back to the walk-in client when none is given. The
// bool reports whether the caller picked a real client.
func (s *Service) resolveClientID(clientID *string) (uuid.UUID, bool, error) {
	if clientID == nil || strings.TrimSpace(*clientID) == "" {
		return s.WalkInClientID, false, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*clientID))
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, id != s.WalkInClientID, nil
}

// normalizePayments returns the effective payment slots, whether the sale
// involves credit, and the financed balance when explicit slots carry it.
// With no explicit slots the summary method becomes a single implicit slot
// settled at commit time against the computed total.
func normalizePayments(req CommitRequest) ([]Payment, bool, decimal.Decimal, error) {
	method := credit.Method(strings.ToLower(strings.TrimSpace(req.MetodoPago)))
	if !credit.KnownMethod(method) {
		return nil, false, decimal.Zero, common.Validation("metodo_pago inválido")
	}

	if len(req.Pagos) == 0 {
		return nil, method == credit.MethodCredit, decimal.Zero, nil
	}

	if len(req.Pagos) > 2 {
		return nil, false, decimal.Zero, common.Validation("se admiten como máximo dos pagos")
	}
	financed := decimal.Zero
	pagos := make([]Payment, 0, len(req.Pagos))
	creditSlots := 0
	for _, p := range req.Pagos {
		m := credit.Method(strings.ToLower(strings.TrimSpace(p.Metodo)))
		if !credit.KnownMethod(m) {
			return nil, false, decimal.Zero, common.Validation("metodo_pago inválido")
		}
		if !p.Monto.IsPositive() {
			return nil, false, decimal.Zero, common.Validation("pago incompleto")
		}
		if m == credit.MethodCredit {
			creditSlots++
			financed = financed.Add(p.Monto)
		}
		pagos = append(pagos, Payment{Metodo: string(m), Monto: p.Monto})
	}
	if creditSlots > 1 {
		return nil, false, decimal.Zero, common.Validation("solo un pago puede ser a crédito")
	}
	return pagos, creditSlots > 0, financed, nil
}

// checkPaymentsCoverTotal runs after the authoritative total is known.
func checkPaymentsCoverTotal(pagos []Payment, total decimal.Decimal) error {
	sum := decimal.Zero
	for _, p := range pagos {
		sum = sum.Add(p.Monto)
	}
	if sum.Sub(total).Abs().GreaterThan(reconcileTolerance) {
		return common.Validation("pago incompleto")
	}
	return nil
}

// reconcileInstallments checks the confirmed schedule sum against the
// financed balance within the rounding tolerance.
func reconcileInstallments(installments []InstallmentInput, financed decimal.Decimal) error {
	sum := decimal.Zero
	for _, in := range installments {
		sum = sum.Add(in.Monto)
	}
	if sum.Sub(financed).Abs().GreaterThan(reconcileTolerance) {
		return common.Validation("las cuotas no coinciden con el saldo financiado")
	}
	return nil
}

func parseInstallments(inputs []InstallmentInput) ([]Installment, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	installments := make([]Installment, 0, len(inputs))
	for _, in := range inputs {
		if !in.Monto.IsPositive() && !in.Monto.IsZero() {
			return nil, common.Validation("el monto de una cuota no puede ser negativo")
		}
		due, err := parseDueDate(in.Vencimiento)
		if err != nil {
			return nil, common.Validation("dueDate inválido: se espera una fecha ISO-8601")
		}
		installments = append(installments, Installment{
			Numero:      in.Numero,
			Monto:       in.Monto.Round(2),
			Vencimiento: due,
		})
	}
	return installments, nil
}

func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
