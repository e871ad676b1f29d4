package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fergasdev/backend-fergas/internal/common"
)

// Store abstracts catalog persistence for the service layer.
type Store interface {
	ListProducts(ctx context.Context, q common.ListQuery) ([]Product, int64, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	ListGasTypes(ctx context.Context, q common.ListQuery) ([]GasType, int64, error)
	GetGasType(ctx context.Context, id uuid.UUID) (GasType, error)
	CreateGasType(ctx context.Context, g GasType) (GasType, error)
	UpdateGasType(ctx context.Context, g GasType) (GasType, error)
	DeleteGasType(ctx context.Context, id uuid.UUID) error

	ListWashers(ctx context.Context) ([]Washer, error)
	CreateWasher(ctx context.Context, w Washer) (Washer, error)

	ListClients(ctx context.Context, q common.ListQuery) ([]Client, int64, error)
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	CreateClient(ctx context.Context, c Client) (Client, error)
}

// PGStore is the pgx-backed Store.
type PGStore struct {
	Pool *pgxpool.Pool
}

// Column whitelists for orderBy. Anything else falls back to the default.
var productOrderColumns = map[string]string{
	"nombre": "nombre",
	"codigo": "codigo",
	"precio": "precio",
	"stock":  "stock",
}

var gasOrderColumns = map[string]string{
	"nombre":       "nombre",
	"precio":       "precio",
	"stock_llenos": "stock_llenos",
}

func orderClause(columns map[string]string, q common.ListQuery, fallback string) string {
	col, ok := columns[q.OrderBy]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if q.OrderDir == "desc" {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s", col, dir)
}

func (s PGStore) ListProducts(ctx context.Context, q common.ListQuery) ([]Product, int64, error) {
	where := ""
	args := []any{}
	if q.Search != "" {
		where = "WHERE nombre ILIKE $1 OR codigo ILIKE $1"
		args = append(args, "%"+strings.TrimSpace(q.Search)+"%")
	}

	var total int64
	if err := s.Pool.QueryRow(ctx,
		"SELECT count(*) FROM productos "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count productos: %w", err)
	}

	query := "SELECT id, codigo, nombre, precio, iva_rate, stock, created_at, updated_at FROM productos " +
		where + " " + orderClause(productOrderColumns, q, "nombre")
	if q.Paged {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", q.PageSize, q.Offset())
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list productos: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Codigo, &p.Nombre, &p.Precio, &p.IVARate, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan producto: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (s PGStore) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := s.Pool.QueryRow(ctx,
		`SELECT id, codigo, nombre, precio, iva_rate, stock, created_at, updated_at
		 FROM productos WHERE id = $1`, id,
	).Scan(&p.ID, &p.Codigo, &p.Nombre, &p.Precio, &p.IVARate, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s PGStore) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO productos (codigo, nombre, precio, iva_rate, stock)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		p.Codigo, p.Nombre, p.Precio, p.IVARate, p.Stock,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s PGStore) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	err := s.Pool.QueryRow(ctx,
		`UPDATE productos
		 SET codigo = $2, nombre = $3, precio = $4, iva_rate = $5, stock = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		p.ID, p.Codigo, p.Nombre, p.Precio, p.IVARate, p.Stock,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s PGStore) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM productos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s PGStore) ListGasTypes(ctx context.Context, q common.ListQuery) ([]GasType, int64, error) {
	where := ""
	args := []any{}
	if q.Search != "" {
		where = "WHERE nombre ILIKE $1"
		args = append(args, "%"+strings.TrimSpace(q.Search)+"%")
	}

	var total int64
	if err := s.Pool.QueryRow(ctx,
		"SELECT count(*) FROM gas_tipos "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count gas_tipos: %w", err)
	}

	query := "SELECT id, nombre, precio, stock_llenos, stock_vacios, created_at, updated_at FROM gas_tipos " +
		where + " " + orderClause(gasOrderColumns, q, "nombre")
	if q.Paged {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", q.PageSize, q.Offset())
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list gas_tipos: %w", err)
	}
	defer rows.Close()

	gasTypes := []GasType{}
	for rows.Next() {
		var g GasType
		if err := rows.Scan(&g.ID, &g.Nombre, &g.Precio, &g.StockLlenos, &g.StockVacios, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan gas_tipo: %w", err)
		}
		gasTypes = append(gasTypes, g)
	}
	return gasTypes, total, rows.Err()
}

func (s PGStore) GetGasType(ctx context.Context, id uuid.UUID) (GasType, error) {
	var g GasType
	err := s.Pool.QueryRow(ctx,
		`SELECT id, nombre, precio, stock_llenos, stock_vacios, created_at, updated_at
		 FROM gas_tipos WHERE id = $1`, id,
	).Scan(&g.ID, &g.Nombre, &g.Precio, &g.StockLlenos, &g.StockVacios, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (s PGStore) CreateGasType(ctx context.Context, g GasType) (GasType, error) {
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO gas_tipos (nombre, precio, stock_llenos, stock_vacios)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		g.Nombre, g.Precio, g.StockLlenos, g.StockVacios,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (s PGStore) UpdateGasType(ctx context.Context, g GasType) (GasType, error) {
	err := s.Pool.QueryRow(ctx,
		`UPDATE gas_tipos
		 SET nombre = $2, precio = $3, stock_llenos = $4, stock_vacios = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		g.ID, g.Nombre, g.Precio, g.StockLlenos, g.StockVacios,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (s PGStore) DeleteGasType(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM gas_tipos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s PGStore) ListWashers(ctx context.Context) ([]Washer, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, nombre, precio_alquiler, disponible, created_at
		 FROM lavarropas ORDER BY nombre ASC`)
	if err != nil {
		return nil, fmt.Errorf("list lavarropas: %w", err)
	}
	defer rows.Close()

	washers := []Washer{}
	for rows.Next() {
		var w Washer
		if err := rows.Scan(&w.ID, &w.Nombre, &w.PrecioAlquiler, &w.Disponible, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lavarropas: %w", err)
		}
		washers = append(washers, w)
	}
	return washers, rows.Err()
}

func (s PGStore) CreateWasher(ctx context.Context, w Washer) (Washer, error) {
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO lavarropas (nombre, precio_alquiler, disponible)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		w.Nombre, w.PrecioAlquiler, w.Disponible,
	).Scan(&w.ID, &w.CreatedAt)
	return w, err
}

func (s PGStore) ListClients(ctx context.Context, q common.ListQuery) ([]Client, int64, error) {
	where := ""
	args := []any{}
	if q.Search != "" {
		where = "WHERE nombre ILIKE $1"
		args = append(args, "%"+strings.TrimSpace(q.Search)+"%")
	}

	var total int64
	if err := s.Pool.QueryRow(ctx,
		"SELECT count(*) FROM clientes "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clientes: %w", err)
	}

	query := "SELECT id, nombre, telefono, direccion, created_at FROM clientes " +
		where + " ORDER BY nombre ASC"
	if q.Paged {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", q.PageSize, q.Offset())
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clientes: %w", err)
	}
	defer rows.Close()

	clients := []Client{}
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Nombre, &c.Telefono, &c.Direccion, &c.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan cliente: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}

func (s PGStore) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	var c Client
	err := s.Pool.QueryRow(ctx,
		`SELECT id, nombre, telefono, direccion, created_at FROM clientes WHERE id = $1`, id,
	).Scan(&c.ID, &c.Nombre, &c.Telefono, &c.Direccion, &c.CreatedAt)
	return c, err
}

func (s PGStore) CreateClient(ctx context.Context, c Client) (Client, error) {
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO clientes (nombre, telefono, direccion)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.Nombre, c.Telefono, c.Direccion,
	).Scan(&c.ID, &c.CreatedAt)
	return c, err
}
