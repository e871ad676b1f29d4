package sales

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fergasdev/backend-fergas/internal/catalog"
	"github.com/fergasdev/backend-fergas/internal/common"
	"github.com/fergasdev/backend-fergas/internal/config"
)

type fakeProduct struct {
	Nombre  string
	IVARate decimal.Decimal
	Stock   int
}

type fakeGas struct {
	Llenos int
	Vacios int
}

// fakeDB implements Store and TxStore over maps. WithinTx snapshots state and
// restores it on error, mirroring a rolled-back transaction. The mutex
// serialises transactions the way row locks on the touched inventory rows
// would.
type fakeDB struct {
	mu sync.Mutex

	users    map[uuid.UUID]bool
	clients  map[uuid.UUID]catalog.Client
	products map[uuid.UUID]*fakeProduct
	gas      map[uuid.UUID]*fakeGas

	sales        []Sale
	items        []SaleItem
	pagos        []Payment
	installments []Installment
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:    map[uuid.UUID]bool{},
		clients:  map[uuid.UUID]catalog.Client{},
		products: map[uuid.UUID]*fakeProduct{},
		gas:      map[uuid.UUID]*fakeGas{},
	}
}

func (db *fakeDB) snapshot() *fakeDB {
	clone := newFakeDB()
	for k, v := range db.users {
		clone.users[k] = v
	}
	for k, v := range db.clients {
		clone.clients[k] = v
	}
	for k, v := range db.products {
		p := *v
		clone.products[k] = &p
	}
	for k, v := range db.gas {
		g := *v
		clone.gas[k] = &g
	}
	clone.sales = append([]Sale(nil), db.sales...)
	clone.items = append([]SaleItem(nil), db.items...)
	clone.pagos = append([]Payment(nil), db.pagos...)
	clone.installments = append([]Installment(nil), db.installments...)
	return clone
}

func (db *fakeDB) restore(from *fakeDB) {
	db.users = from.users
	db.clients = from.clients
	db.products = from.products
	db.gas = from.gas
	db.sales = from.sales
	db.items = from.items
	db.pagos = from.pagos
	db.installments = from.installments
}

func (db *fakeDB) WithinTx(_ context.Context, fn func(tx TxStore) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	saved := db.snapshot()
	if err := fn(db); err != nil {
		db.restore(saved)
		return err
	}
	return nil
}

func (db *fakeDB) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	return db.users[id], nil
}

func (db *fakeDB) GetClient(_ context.Context, id uuid.UUID) (catalog.Client, error) {
	c, ok := db.clients[id]
	if !ok {
		return catalog.Client{}, pgx.ErrNoRows
	}
	return c, nil
}

func (db *fakeDB) GetProductForSale(_ context.Context, id uuid.UUID) (ProductForSale, error) {
	p, ok := db.products[id]
	if !ok {
		return ProductForSale{}, pgx.ErrNoRows
	}
	return ProductForSale{Nombre: p.Nombre, IVARate: p.IVARate}, nil
}

func (db *fakeDB) GasTypeExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := db.gas[id]
	return ok, nil
}

func (db *fakeDB) DecrementProductStock(_ context.Context, id uuid.UUID, qty int) (bool, error) {
	p, ok := db.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (db *fakeDB) DecrementGasFull(_ context.Context, id uuid.UUID, qty int) (bool, error) {
	g, ok := db.gas[id]
	if !ok || g.Llenos < qty {
		return false, nil
	}
	g.Llenos -= qty
	return true, nil
}

func (db *fakeDB) IncrementGasEmpty(_ context.Context, id uuid.UUID, qty int) error {
	db.gas[id].Vacios += qty
	return nil
}

func (db *fakeDB) InsertSale(_ context.Context, sale Sale) (uuid.UUID, time.Time, error) {
	sale.ID = uuid.New()
	sale.Fecha = time.Now()
	db.sales = append(db.sales, sale)
	return sale.ID, sale.Fecha, nil
}

func (db *fakeDB) InsertSaleItem(_ context.Context, item SaleItem) (uuid.UUID, error) {
	item.ID = uuid.New()
	db.items = append(db.items, item)
	return item.ID, nil
}

func (db *fakeDB) InsertPayment(_ context.Context, payment Payment) (uuid.UUID, error) {
	payment.ID = uuid.New()
	db.pagos = append(db.pagos, payment)
	return payment.ID, nil
}

func (db *fakeDB) InsertInstallment(_ context.Context, installment Installment) (uuid.UUID, error) {
	installment.ID = uuid.New()
	db.installments = append(db.installments, installment)
	return installment.ID, nil
}

func (db *fakeDB) ListSales(_ context.Context, _ ListFilter) ([]Sale, int64, error) {
	return db.sales, int64(len(db.sales)), nil
}

func (db *fakeDB) GetSale(_ context.Context, id uuid.UUID) (Sale, error) {
	for _, s := range db.sales {
		if s.ID == id {
			return s, nil
		}
	}
	return Sale{}, pgx.ErrNoRows
}

var walkInID = uuid.MustParse(config.DefaultWalkInClientID)

type fixture struct {
	db      *fakeDB
	svc     *Service
	userID  uuid.UUID
	client  uuid.UUID
	product uuid.UUID
	gas     uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := newFakeDB()
	userID := uuid.New()
	clientID := uuid.New()
	productID := uuid.New()
	gasID := uuid.New()

	db.users[userID] = true
	db.clients[walkInID] = catalog.Client{ID: walkInID, Nombre: "Consumidor Final"}
	db.clients[clientID] = catalog.Client{ID: clientID, Nombre: "María Gómez"}
	db.products[productID] = &fakeProduct{
		Nombre:  "Taladro",
		IVARate: decimal.RequireFromString("0.21"),
		Stock:   5,
	}
	db.gas[gasID] = &fakeGas{Llenos: 8, Vacios: 2}

	svc := NewService(db, zerolog.Nop(), walkInID)
	return fixture{db: db, svc: svc, userID: userID, client: clientID, product: productID, gas: gasID}
}

func strPtr(s string) *string { return &s }

func (f fixture) productItem(qty int, price string) ItemInput {
	id := f.product.String()
	return ItemInput{ProductID: &id, Cantidad: qty, PrecioUnit: decimal.RequireFromString(price)}
}

func (f fixture) gasItem(qty int, price string, exchange bool) ItemInput {
	id := f.gas.String()
	return ItemInput{GasTypeID: &id, Cantidad: qty, PrecioUnit: decimal.RequireFromString(price), RecibioEnvase: exchange}
}

func requireValidation(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, 400, appErr.HTTPStatus)
	require.Equal(t, message, appErr.Message)
}

func TestCommitCashSale(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		Items:      []ItemInput{f.productItem(2, "100.00")},
		MetodoPago: "efectivo",
	})
	require.NoError(t, err)

	require.Equal(t, "200.00", sale.SubtotalNeto.StringFixed(2))
	require.Equal(t, "42.00", sale.IVATotal.StringFixed(2))
	require.Equal(t, "242.00", sale.Total.StringFixed(2))
	require.Equal(t, walkInID, sale.ClienteID)
	require.Equal(t, "Consumidor Final", sale.Cliente.Nombre)
	require.Len(t, sale.Items, 1)
	require.Equal(t, "42.00", sale.Items[0].IVAMonto.StringFixed(2))
	require.Equal(t, 3, f.db.products[f.product].Stock)

	require.Len(t, f.db.pagos, 1)
	require.Equal(t, "efectivo", f.db.pagos[0].Metodo)
	require.Equal(t, "242.00", f.db.pagos[0].Monto.StringFixed(2))
}

func TestCommitMixedProductAndGasExchange(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		Items: []ItemInput{
			f.productItem(1, "100.00"),
			f.gasItem(2, "50.00", true),
		},
		MetodoPago: "efectivo",
	})
	require.NoError(t, err)

	require.Equal(t, 4, f.db.products[f.product].Stock)
	require.Equal(t, 6, f.db.gas[f.gas].Llenos)
	require.Equal(t, 4, f.db.gas[f.gas].Vacios)

	// Gas never contributes IVA.
	require.Equal(t, "200.00", sale.SubtotalNeto.StringFixed(2))
	require.Equal(t, "21.00", sale.IVATotal.StringFixed(2))
	require.Equal(t, "221.00", sale.Total.StringFixed(2))
	require.Equal(t, "0.00", sale.Items[1].IVAMonto.StringFixed(2))
}

func TestCommitInsufficientProductStock(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		Items:      []ItemInput{f.productItem(6, "100.00")},
		MetodoPago: "efectivo",
	})
	requireValidation(t, err, "Stock insuficiente para producto Taladro")

	require.Equal(t, 5, f.db.products[f.product].Stock, "stock must be untouched after abort")
	require.Empty(t, f.db.sales)
	require.Empty(t, f.db.items)
}

func TestCommitInsufficientStockRollsBackEarlierItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		Items: []ItemInput{
			f.productItem(2, "100.00"),
			f.gasItem(20, "50.00", false),
		},
		MetodoPago: "efectivo",
	})
	requireValidation(t, err, "Stock de gas insuficiente")

	require.Equal(t, 5, f.db.products[f.product].Stock, "first item decrement must roll back")
	require.Equal(t, 8, f.db.gas[f.gas].Llenos)
	require.Empty(t, f.db.sales)
}

func TestCommitConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)

	// Stock is 5; four buyers want 2 units each, so only two sales fit.
	const buyers = 4
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
				Items:      []ItemInput{f.productItem(2, "100.00")},
				MetodoPago: "efectivo",
			})
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		requireValidation(t, err, "Stock insuficiente para producto Taladro")
	}
	require.Equal(t, 2, committed)
	require.Equal(t, 1, f.db.products[f.product].Stock)
	require.GreaterOrEqual(t, f.db.products[f.product].Stock, 0, "stock must never go negative")
	require.Len(t, f.db.sales, committed)
}

func TestCommitItemWithoutReference(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		Items:      []ItemInput{{Cantidad: 1, PrecioUnit: decimal.RequireFromString("10.00")}},
		MetodoPago: "efectivo",
	})
	requireValidation(t, err, "Cada item debe referenciar productId o gasTypeId")
}

func TestCommitItemWithBothReferences(t *testing.T) {
	f := newFixture(t)
	item := f.productItem(1, "10.00")
	item.GasTypeID = strPtr(f.gas.String())

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		Items:      []ItemInput{item},
		MetodoPago: "efectivo",
	})
	requireValidation(t, err, "Cada item debe referenciar productId o gasTypeId")
}

func TestCommitUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), uuid.New().String(), CommitRequest{
		Items:      []ItemInput{f.productItem(1, "100.00")},
		MetodoPago: "efectivo",
	})
	requireValidation(t, err, "Usuario no válido")
}

func TestCommitCreditRequiresClient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		Items:      []ItemInput{f.productItem(1, "100.00")},
		MetodoPago: "credito",
		CreditInstallments: []InstallmentInput{
			{Numero: 1, Monto: decimal.RequireFromString("121.00"), Vencimiento: "2026-10-01"},
		},
	})
	requireValidation(t, err, "debe seleccionar un cliente para vender a crédito")
}

func TestCommitCreditWithoutScheduleIsBlocked(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		ClientID:   strPtr(f.client.String()),
		Items:      []ItemInput{f.productItem(1, "100.00")},
		MetodoPago: "credito",
	})
	requireValidation(t, err, "pago incompleto")
}

func TestCommitFullCreditSale(t *testing.T) {
	f := newFixture(t)

	// Total is 121.00 (100 + 21% IVA); three installments summing exactly.
	sale, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		ClientID:   strPtr(f.client.String()),
		Items:      []ItemInput{f.productItem(1, "100.00")},
		MetodoPago: "credito",
		CreditInstallments: []InstallmentInput{
			{Numero: 1, Monto: decimal.RequireFromString("40.34"), Vencimiento: "2026-10-01"},
			{Numero: 2, Monto: decimal.RequireFromString("40.34"), Vencimiento: "2026-10-31"},
			{Numero: 3, Monto: decimal.RequireFromString("40.32"), Vencimiento: "2026-11-30"},
		},
	})
	require.NoError(t, err)
	require.Len(t, sale.Cuotas, 3)
	for _, cuota := range sale.Cuotas {
		require.Equal(t, "pendiente", cuota.Estado)
		require.Equal(t, sale.ID, cuota.VentaID)
	}
	require.Equal(t, f.client, sale.ClienteID)
}

func TestCommitFullCreditScheduleMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		ClientID:   strPtr(f.client.String()),
		Items:      []ItemInput{f.productItem(1, "100.00")},
		MetodoPago: "credito",
		CreditInstallments: []InstallmentInput{
			{Numero: 1, Monto: decimal.RequireFromString("50.00"), Vencimiento: "2026-10-01"},
		},
	})
	requireValidation(t, err, "las cuotas no coinciden con el saldo financiado")
	require.Equal(t, 5, f.db.products[f.product].Stock, "mismatch aborts the transaction")
}

func TestCommitSplitCashCredit(t *testing.T) {
	f := newFixture(t)

	// 242.00 total: 100 cash + 142 financed.
	sale, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		ClientID:   strPtr(f.client.String()),
		Items:      []ItemInput{f.productItem(2, "100.00")},
		MetodoPago: "credito",
		Pagos: []PaymentInput{
			{Metodo: "efectivo", Monto: decimal.RequireFromString("100.00")},
			{Metodo: "credito", Monto: decimal.RequireFromString("142.00")},
		},
		CreditInstallments: []InstallmentInput{
			{Numero: 1, Monto: decimal.RequireFromString("71.00"), Vencimiento: "2026-10-01"},
			{Numero: 2, Monto: decimal.RequireFromString("71.00"), Vencimiento: "2026-10-31"},
		},
	})
	require.NoError(t, err)
	require.Len(t, sale.Pagos, 2)
	require.Len(t, sale.Cuotas, 2)
}

func TestCommitPaymentsMustCoverTotal(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		Items:      []ItemInput{f.productItem(2, "100.00")},
		MetodoPago: "efectivo",
		Pagos: []PaymentInput{
			{Metodo: "efectivo", Monto: decimal.RequireFromString("100.00")},
		},
	})
	requireValidation(t, err, "pago incompleto")
	require.Equal(t, 5, f.db.products[f.product].Stock)
}

func TestCommitUnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		Items:      []ItemInput{f.productItem(1, "100.00")},
		MetodoPago: "cheque",
	})
	requireValidation(t, err, "metodo_pago inválido")
}

func TestCommitInvalidDueDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Commit(context.Background(), f.userID.String(), CommitRequest{
		ClientID:   strPtr(f.client.String()),
		Items:      []ItemInput{f.productItem(1, "100.00")},
		MetodoPago: "credito",
		CreditInstallments: []InstallmentInput{
			{Numero: 1, Monto: decimal.RequireFromString("121.00"), Vencimiento: "mañana"},
		},
	})
	requireValidation(t, err, "dueDate inválido: se espera una fecha ISO-8601")
}

func TestGetSaleNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, 404, appErr.HTTPStatus)
}
