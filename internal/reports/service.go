// Package reports computes sales aggregates in SQL and caches the results in
// Redis for a short TTL.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DailyTotal is one day of aggregated sales.
type DailyTotal struct {
	Fecha        string          `json:"fecha"`
	Ventas       int64           `json:"ventas"`
	SubtotalNeto decimal.Decimal `json:"subtotal_neto"`
	IVATotal     decimal.Decimal `json:"iva_total"`
	Total        decimal.Decimal `json:"total"`
}

// TopProduct is one product ranked by units sold in the period.
type TopProduct struct {
	ProductoID string          `json:"productId"`
	Nombre     string          `json:"nombre"`
	Unidades   int64           `json:"unidades"`
	Importe    decimal.Decimal `json:"importe"`
}

// Queries is the SQL surface the report service needs.
type Queries interface {
	DailyTotals(ctx context.Context, from, to time.Time) ([]DailyTotal, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)
}

// PGQueries runs the report aggregations against Postgres.
type PGQueries struct {
	Pool *pgxpool.Pool
}

func (q PGQueries) DailyTotals(ctx context.Context, from, to time.Time) ([]DailyTotal, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT to_char(date_trunc('day', fecha), 'YYYY-MM-DD') AS dia,
		        count(*), sum(subtotal_neto), sum(iva_total), sum(total)
		 FROM ventas
		 WHERE fecha >= $1 AND fecha < $2
		 GROUP BY dia
		 ORDER BY dia`, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	totals := []DailyTotal{}
	for rows.Next() {
		var t DailyTotal
		if err := rows.Scan(&t.Fecha, &t.Ventas, &t.SubtotalNeto, &t.IVATotal, &t.Total); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (q PGQueries) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT p.id::text, p.nombre, sum(vi.cantidad), sum(vi.subtotal)
		 FROM venta_items vi
		 JOIN ventas v ON v.id = vi.venta_id
		 JOIN productos p ON p.id = vi.producto_id
		 WHERE vi.producto_id IS NOT NULL AND v.fecha >= $1 AND v.fecha < $2
		 GROUP BY p.id, p.nombre
		 ORDER BY sum(vi.cantidad) DESC
		 LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	products := []TopProduct{}
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductoID, &p.Nombre, &p.Unidades, &p.Importe); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Service caches report queries in Redis. A nil Redis client disables the
// cache.
type Service struct {
	Queries Queries
	Redis   *redis.Client
	TTL     time.Duration
	Logger  zerolog.Logger
}

// NewService constructs the report service.
func NewService(queries Queries, redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{Queries: queries, Redis: redisClient, TTL: ttl, Logger: logger}
}

// DailyTotals returns aggregated per-day sales for [from, to).
func (s *Service) DailyTotals(ctx context.Context, from, to time.Time) ([]DailyTotal, error) {
	key := fmt.Sprintf("reports:daily:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []DailyTotal
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	totals, err := s.Queries.DailyTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, totals)
	return totals, nil
}

// TopProducts returns the best-selling products of [from, to).
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	key := fmt.Sprintf("reports:top:%s:%s:%d", from.Format("2006-01-02"), to.Format("2006-01-02"), limit)
	var cached []TopProduct
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	products, err := s.Queries.TopProducts(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, products)
	return products, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.Redis == nil {
		return false
	}
	raw, err := s.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("report cache read failed")
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, raw, s.TTL).Err(); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
}
