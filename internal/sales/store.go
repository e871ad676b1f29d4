package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fergasdev/backend-fergas/internal/catalog"
	"github.com/fergasdev/backend-fergas/internal/common"
)

// ProductForSale is the subset of a product the commit transaction needs.
type ProductForSale struct {
	Nombre  string
	IVARate decimal.Decimal
}

// TxStore is the row-level interface the commit transaction runs against.
// All calls inside one WithinTx invocation share the same database
// transaction.
type TxStore interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetClient(ctx context.Context, id uuid.UUID) (catalog.Client, error)
	GetProductForSale(ctx context.Context, id uuid.UUID) (ProductForSale, error)
	GasTypeExists(ctx context.Context, id uuid.UUID) (bool, error)

	// DecrementProductStock applies `stock = stock - qty` only when the row
	// still holds at least qty units. The bool reports whether the decrement
	// was applied.
	DecrementProductStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	// DecrementGasFull works like DecrementProductStock over stock_llenos.
	DecrementGasFull(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	IncrementGasEmpty(ctx context.Context, id uuid.UUID, qty int) error

	InsertSale(ctx context.Context, sale Sale) (uuid.UUID, time.Time, error)
	InsertSaleItem(ctx context.Context, item SaleItem) (uuid.UUID, error)
	InsertPayment(ctx context.Context, payment Payment) (uuid.UUID, error)
	InsertInstallment(ctx context.Context, installment Installment) (uuid.UUID, error)
}

// ListFilter narrows the sales history listing.
type ListFilter struct {
	common.ListQuery
	From     *time.Time
	To       *time.Time
	ClientID *uuid.UUID
}

// Store is the sales persistence boundary.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx TxStore) error) error
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int64, error)
	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)
}

// PGStore is the pgx-backed Store.
type PGStore struct {
	Pool *pgxpool.Pool
}

// WithinTx runs fn inside a single database transaction, rolling back on any
// error.
func (s PGStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgTxStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTxStore struct {
	tx pgx.Tx
}

func (s pgTxStore) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM usuarios WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, err
}

func (s pgTxStore) GetClient(ctx context.Context, id uuid.UUID) (catalog.Client, error) {
	var c catalog.Client
	err := s.tx.QueryRow(ctx,
		`SELECT id, nombre, telefono, direccion, created_at FROM clientes WHERE id = $1`, id,
	).Scan(&c.ID, &c.Nombre, &c.Telefono, &c.Direccion, &c.CreatedAt)
	return c, err
}

func (s pgTxStore) GetProductForSale(ctx context.Context, id uuid.UUID) (ProductForSale, error) {
	var p ProductForSale
	err := s.tx.QueryRow(ctx,
		`SELECT nombre, iva_rate FROM productos WHERE id = $1`, id,
	).Scan(&p.Nombre, &p.IVARate)
	return p, err
}

func (s pgTxStore) GasTypeExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM gas_tipos WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, err
}

func (s pgTxStore) DecrementProductStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	tag, err := s.tx.Exec(ctx,
		`UPDATE productos SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2`, id, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s pgTxStore) DecrementGasFull(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	tag, err := s.tx.Exec(ctx,
		`UPDATE gas_tipos SET stock_llenos = stock_llenos - $2, updated_at = now()
		 WHERE id = $1 AND stock_llenos >= $2`, id, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s pgTxStore) IncrementGasEmpty(ctx context.Context, id uuid.UUID, qty int) error {
	_, err := s.tx.Exec(ctx,
		`UPDATE gas_tipos SET stock_vacios = stock_vacios + $2, updated_at = now()
		 WHERE id = $1`, id, qty)
	return err
}

func (s pgTxStore) InsertSale(ctx context.Context, sale Sale) (uuid.UUID, time.Time, error) {
	var (
		id    uuid.UUID
		fecha time.Time
	)
	err := s.tx.QueryRow(ctx,
		`INSERT INTO ventas (usuario_id, cliente_id, subtotal_neto, iva_total, total, metodo_pago)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, fecha`,
		sale.UsuarioID, sale.ClienteID, sale.SubtotalNeto, sale.IVATotal, sale.Total, sale.MetodoPago,
	).Scan(&id, &fecha)
	return id, fecha, err
}

func (s pgTxStore) InsertSaleItem(ctx context.Context, item SaleItem) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.tx.QueryRow(ctx,
		`INSERT INTO venta_items (venta_id, producto_id, gas_tipo_id, cantidad, precio_unit, recibio_envase, subtotal, iva_monto)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		item.VentaID, item.ProductoID, item.GasTipoID, item.Cantidad, item.PrecioUnit,
		item.RecibioEnvase, item.Subtotal, item.IVAMonto,
	).Scan(&id)
	return id, err
}

func (s pgTxStore) InsertPayment(ctx context.Context, payment Payment) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.tx.QueryRow(ctx,
		`INSERT INTO venta_pagos (venta_id, metodo, monto)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		payment.VentaID, payment.Metodo, payment.Monto,
	).Scan(&id)
	return id, err
}

func (s pgTxStore) InsertInstallment(ctx context.Context, installment Installment) (uuid.UUID, error) {
	estado := installment.Estado
	if estado == "" {
		estado = "pendiente"
	}
	var id uuid.UUID
	err := s.tx.QueryRow(ctx,
		`INSERT INTO cuotas (venta_id, numero, monto, vencimiento, estado)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		installment.VentaID, installment.Numero, installment.Monto, installment.Vencimiento, estado,
	).Scan(&id)
	return id, err
}

func (s PGStore) ListSales(ctx context.Context, filter ListFilter) ([]Sale, int64, error) {
	where := "WHERE 1=1"
	args := []any{}
	n := 0
	next := func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}
	if filter.From != nil {
		where += " AND fecha >= " + next()
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where += " AND fecha < " + next()
		args = append(args, *filter.To)
	}
	if filter.ClientID != nil {
		where += " AND cliente_id = " + next()
		args = append(args, *filter.ClientID)
	}

	var total int64
	if err := s.Pool.QueryRow(ctx,
		"SELECT count(*) FROM ventas "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ventas: %w", err)
	}

	query := `SELECT id, usuario_id, cliente_id, subtotal_neto, iva_total, total, metodo_pago, fecha
	          FROM ventas ` + where + " ORDER BY fecha DESC"
	if filter.Paged {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, filter.Offset())
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ventas: %w", err)
	}
	defer rows.Close()

	result := []Sale{}
	for rows.Next() {
		var sale Sale
		if err := rows.Scan(&sale.ID, &sale.UsuarioID, &sale.ClienteID, &sale.SubtotalNeto,
			&sale.IVATotal, &sale.Total, &sale.MetodoPago, &sale.Fecha); err != nil {
			return nil, 0, fmt.Errorf("scan venta: %w", err)
		}
		result = append(result, sale)
	}
	return result, total, rows.Err()
}

func (s PGStore) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	var sale Sale
	err := s.Pool.QueryRow(ctx,
		`SELECT id, usuario_id, cliente_id, subtotal_neto, iva_total, total, metodo_pago, fecha
		 FROM ventas WHERE id = $1`, id,
	).Scan(&sale.ID, &sale.UsuarioID, &sale.ClienteID, &sale.SubtotalNeto,
		&sale.IVATotal, &sale.Total, &sale.MetodoPago, &sale.Fecha)
	if err != nil {
		return Sale{}, err
	}

	itemRows, err := s.Pool.Query(ctx,
		`SELECT id, venta_id, producto_id, gas_tipo_id, cantidad, precio_unit, recibio_envase, subtotal, iva_monto
		 FROM venta_items WHERE venta_id = $1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, fmt.Errorf("load venta_items: %w", err)
	}
	defer itemRows.Close()
	sale.Items = []SaleItem{}
	for itemRows.Next() {
		var item SaleItem
		if err := itemRows.Scan(&item.ID, &item.VentaID, &item.ProductoID, &item.GasTipoID,
			&item.Cantidad, &item.PrecioUnit, &item.RecibioEnvase, &item.Subtotal, &item.IVAMonto); err != nil {
			return Sale{}, fmt.Errorf("scan venta_item: %w", err)
		}
		sale.Items = append(sale.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return Sale{}, err
	}

	payRows, err := s.Pool.Query(ctx,
		`SELECT id, venta_id, metodo, monto FROM venta_pagos WHERE venta_id = $1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, fmt.Errorf("load venta_pagos: %w", err)
	}
	defer payRows.Close()
	sale.Pagos = []Payment{}
	for payRows.Next() {
		var p Payment
		if err := payRows.Scan(&p.ID, &p.VentaID, &p.Metodo, &p.Monto); err != nil {
			return Sale{}, fmt.Errorf("scan venta_pago: %w", err)
		}
		sale.Pagos = append(sale.Pagos, p)
	}
	if err := payRows.Err(); err != nil {
		return Sale{}, err
	}

	cuotaRows, err := s.Pool.Query(ctx,
		`SELECT id, venta_id, numero, monto, vencimiento, estado
		 FROM cuotas WHERE venta_id = $1 ORDER BY numero`, id)
	if err != nil {
		return Sale{}, fmt.Errorf("load cuotas: %w", err)
	}
	defer cuotaRows.Close()
	for cuotaRows.Next() {
		var c Installment
		if err := cuotaRows.Scan(&c.ID, &c.VentaID, &c.Numero, &c.Monto, &c.Vencimiento, &c.Estado); err != nil {
			return Sale{}, fmt.Errorf("scan cuota: %w", err)
		}
		sale.Cuotas = append(sale.Cuotas, c)
	}
	if err := cuotaRows.Err(); err != nil {
		return Sale{}, err
	}

	var cliente catalog.Client
	err = s.Pool.QueryRow(ctx,
		`SELECT id, nombre, telefono, direccion, created_at FROM clientes WHERE id = $1`, sale.ClienteID,
	).Scan(&cliente.ID, &cliente.Nombre, &cliente.Telefono, &cliente.Direccion, &cliente.CreatedAt)
	if err := attachCliente(&sale, cliente, err); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// attachCliente links the client row to its sale. A missing row leaves the
// sale without a client; any other lookup failure aborts the read.
func attachCliente(sale *Sale, cliente catalog.Client, err error) error {
	switch {
	case err == nil:
		sale.Cliente = &cliente
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	default:
		return fmt.Errorf("load cliente: %w", err)
	}
}
