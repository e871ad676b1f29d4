// Package rentals manages the washing-machine rental lifecycle. A washer is
// unavailable while an active rental references it; closing the rental frees
// it again.
package rentals

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fergasdev/backend-fergas/internal/common"
)

const (
	estadoActivo     = "activo"
	estadoFinalizado = "finalizado"
)

// Rental is one washing-machine rental.
type Rental struct {
	ID           uuid.UUID       `json:"id"`
	LavarropasID uuid.UUID       `json:"lavarropasId"`
	ClienteID    uuid.UUID       `json:"clientId"`
	FechaInicio  time.Time       `json:"fecha_inicio"`
	FechaFin     *time.Time      `json:"fecha_fin,omitempty"`
	Precio       decimal.Decimal `json:"precio"`
	Estado       string          `json:"estado"`
}

// Store is the rentals persistence boundary.
type Store interface {
	CreateRental(ctx context.Context, r Rental) (Rental, error)
	ListRentals(ctx context.Context, onlyActive bool) ([]Rental, error)
	CloseRental(ctx context.Context, id uuid.UUID, fechaFin time.Time) (Rental, error)
}

// PGStore is the pgx-backed Store. Create and close run in a transaction so
// the washer availability flag never drifts from the rental state.
type PGStore struct {
	Pool *pgxpool.Pool
}

func (s PGStore) CreateRental(ctx context.Context, r Rental) (Rental, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Rental{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE lavarropas SET disponible = FALSE WHERE id = $1 AND disponible`, r.LavarropasID)
	if err != nil {
		return Rental{}, err
	}
	if tag.RowsAffected() == 0 {
		return Rental{}, errWasherUnavailable
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO alquileres (lavarropas_id, cliente_id, fecha_inicio, precio, estado)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		r.LavarropasID, r.ClienteID, r.FechaInicio, r.Precio, estadoActivo,
	).Scan(&r.ID)
	if err != nil {
		return Rental{}, err
	}
	r.Estado = estadoActivo
	return r, tx.Commit(ctx)
}

func (s PGStore) ListRentals(ctx context.Context, onlyActive bool) ([]Rental, error) {
	query := `SELECT id, lavarropas_id, cliente_id, fecha_inicio, fecha_fin, precio, estado
	          FROM alquileres`
	if onlyActive {
		query += ` WHERE estado = 'activo'`
	}
	query += ` ORDER BY fecha_inicio DESC`

	rows, err := s.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list alquileres: %w", err)
	}
	defer rows.Close()

	rentals := []Rental{}
	for rows.Next() {
		var r Rental
		if err := rows.Scan(&r.ID, &r.LavarropasID, &r.ClienteID, &r.FechaInicio, &r.FechaFin, &r.Precio, &r.Estado); err != nil {
			return nil, fmt.Errorf("scan alquiler: %w", err)
		}
		rentals = append(rentals, r)
	}
	return rentals, rows.Err()
}

func (s PGStore) CloseRental(ctx context.Context, id uuid.UUID, fechaFin time.Time) (Rental, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Rental{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var r Rental
	err = tx.QueryRow(ctx,
		`UPDATE alquileres SET estado = $2, fecha_fin = $3
		 WHERE id = $1 AND estado = 'activo'
		 RETURNING id, lavarropas_id, cliente_id, fecha_inicio, fecha_fin, precio, estado`,
		id, estadoFinalizado, fechaFin,
	).Scan(&r.ID, &r.LavarropasID, &r.ClienteID, &r.FechaInicio, &r.FechaFin, &r.Precio, &r.Estado)
	if err != nil {
		return Rental{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE lavarropas SET disponible = TRUE WHERE id = $1`, r.LavarropasID); err != nil {
		return Rental{}, err
	}
	return r, tx.Commit(ctx)
}

var errWasherUnavailable = errors.New("rentals: washer unavailable")

// Service applies rental business rules over a Store.
type Service struct {
	Store  Store
	Logger zerolog.Logger
	Now    func() time.Time
}

// NewService constructs the rentals service.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{Store: store, Logger: logger, Now: time.Now}
}

// CreateInput is the rental creation payload.
type CreateInput struct {
	LavarropasID string          `json:"lavarropasId"`
	ClienteID    string          `json:"clientId"`
	FechaInicio  string          `json:"fecha_inicio"`
	Precio       decimal.Decimal `json:"precio"`
}

// Create opens a rental and flags the washer unavailable.
func (s *Service) Create(ctx context.Context, in CreateInput) (Rental, error) {
	washerID, err := uuid.Parse(in.LavarropasID)
	if err != nil {
		return Rental{}, common.Validation("lavarropasId inválido")
	}
	clientID, err := uuid.Parse(in.ClienteID)
	if err != nil {
		return Rental{}, common.Validation("clientId inválido")
	}
	if in.Precio.IsNegative() {
		return Rental{}, common.Validation("precio no puede ser negativo")
	}
	start := s.Now()
	if in.FechaInicio != "" {
		start, err = time.Parse("2006-01-02", in.FechaInicio)
		if err != nil {
			return Rental{}, common.Validation("fecha_inicio inválida: se espera una fecha ISO-8601")
		}
	}

	rental, err := s.Store.CreateRental(ctx, Rental{
		LavarropasID: washerID,
		ClienteID:    clientID,
		FechaInicio:  start,
		Precio:       rentalPrice(in.Precio),
	})
	if err != nil {
		if errors.Is(err, errWasherUnavailable) {
			return Rental{}, common.Validation("el lavarropas no está disponible")
		}
		return Rental{}, err
	}
	s.Logger.Info().Str("rental_id", rental.ID.String()).Msg("rental opened")
	return rental, nil
}

// List returns rentals, optionally only the active ones.
func (s *Service) List(ctx context.Context, onlyActive bool) ([]Rental, error) {
	return s.Store.ListRentals(ctx, onlyActive)
}

// Close finishes an active rental and frees its washer.
func (s *Service) Close(ctx context.Context, id uuid.UUID) (Rental, error) {
	rental, err := s.Store.CloseRental(ctx, id, s.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rental{}, common.NewAppError("NOT_FOUND", "alquiler activo no encontrado", http.StatusNotFound, err)
		}
		return Rental{}, err
	}
	s.Logger.Info().Str("rental_id", rental.ID.String()).Msg("rental closed")
	return rental, nil
}

func rentalPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(2)
}
