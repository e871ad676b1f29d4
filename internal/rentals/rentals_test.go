package rentals

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fergasdev/backend-fergas/internal/common"
)

type fakeStore struct {
	washers map[uuid.UUID]bool // id -> disponible
	rentals map[uuid.UUID]*Rental
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		washers: map[uuid.UUID]bool{},
		rentals: map[uuid.UUID]*Rental{},
	}
}

func (f *fakeStore) CreateRental(_ context.Context, r Rental) (Rental, error) {
	available, ok := f.washers[r.LavarropasID]
	if !ok || !available {
		return Rental{}, errWasherUnavailable
	}
	f.washers[r.LavarropasID] = false
	r.ID = uuid.New()
	r.Estado = estadoActivo
	stored := r
	f.rentals[r.ID] = &stored
	return r, nil
}

func (f *fakeStore) ListRentals(_ context.Context, onlyActive bool) ([]Rental, error) {
	result := []Rental{}
	for _, r := range f.rentals {
		if onlyActive && r.Estado != estadoActivo {
			continue
		}
		result = append(result, *r)
	}
	return result, nil
}

func (f *fakeStore) CloseRental(_ context.Context, id uuid.UUID, fechaFin time.Time) (Rental, error) {
	r, ok := f.rentals[id]
	if !ok || r.Estado != estadoActivo {
		return Rental{}, pgx.ErrNoRows
	}
	r.Estado = estadoFinalizado
	r.FechaFin = &fechaFin
	f.washers[r.LavarropasID] = true
	return *r, nil
}

func TestRentalLifecycle(t *testing.T) {
	store := newFakeStore()
	washerID := uuid.New()
	store.washers[washerID] = true
	svc := NewService(store, zerolog.Nop())

	rental, err := svc.Create(context.Background(), CreateInput{
		LavarropasID: washerID.String(),
		ClienteID:    uuid.New().String(),
		FechaInicio:  "2026-08-01",
		Precio:       decimal.RequireFromString("500.00"),
	})
	require.NoError(t, err)
	require.Equal(t, estadoActivo, rental.Estado)
	require.False(t, store.washers[washerID], "washer must be flagged unavailable")

	// A second rental on the same washer is rejected while the first is open.
	_, err = svc.Create(context.Background(), CreateInput{
		LavarropasID: washerID.String(),
		ClienteID:    uuid.New().String(),
		Precio:       decimal.RequireFromString("500.00"),
	})
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Equal(t, "el lavarropas no está disponible", appErr.Message)

	closed, err := svc.Close(context.Background(), rental.ID)
	require.NoError(t, err)
	require.Equal(t, estadoFinalizado, closed.Estado)
	require.NotNil(t, closed.FechaFin)
	require.True(t, store.washers[washerID], "washer must be available again")

	_, err = svc.Close(context.Background(), rental.ID)
	require.Error(t, err)
	appErr, ok = common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestCreateRentalValidation(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())

	_, err := svc.Create(context.Background(), CreateInput{
		LavarropasID: "no-uuid",
		ClienteID:    uuid.New().String(),
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateInput{
		LavarropasID: uuid.New().String(),
		ClienteID:    uuid.New().String(),
		Precio:       decimal.RequireFromString("-1"),
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateInput{
		LavarropasID: uuid.New().String(),
		ClienteID:    uuid.New().String(),
		FechaInicio:  "ayer",
	})
	require.Error(t, err)
}
