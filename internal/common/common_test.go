package common

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestParseListQuery(t *testing.T) {
	t.Run("no params means unpaged defaults", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		q := ParseListQuery(r, 20, 100)
		require.False(t, q.Paged)
		require.Equal(t, 1, q.Page)
		require.Equal(t, 20, q.PageSize)
		require.Equal(t, "asc", q.OrderDir)
	})

	t.Run("page params switch to paged", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/products?page=3&pageSize=10&q=taladro&orderBy=precio&orderDir=desc", nil)
		q := ParseListQuery(r, 20, 100)
		require.True(t, q.Paged)
		require.Equal(t, 3, q.Page)
		require.Equal(t, 10, q.PageSize)
		require.Equal(t, 20, q.Offset())
		require.Equal(t, "taladro", q.Search)
		require.Equal(t, "precio", q.OrderBy)
		require.Equal(t, "desc", q.OrderDir)
	})

	t.Run("page size is clamped", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/products?pageSize=9999", nil)
		q := ParseListQuery(r, 20, 100)
		require.Equal(t, 100, q.PageSize)
	})

	t.Run("garbage params are ignored", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/products?page=abc&orderDir=sideways", nil)
		q := ParseListQuery(r, 20, 100)
		require.False(t, q.Paged)
		require.Equal(t, "asc", q.OrderDir)
	})
}

func TestWriteError(t *testing.T) {
	t.Run("app error keeps status and message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, Validation("Stock de gas insuficiente"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"error":"Stock de gas insuficiente"}`, rec.Body.String())
	})

	t.Run("wrapped app error is unwrapped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrapped := NewAppError("NOT_FOUND", "venta no encontrada", http.StatusNotFound, errors.New("no rows"))
		WriteError(rec, wrapped)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "venta no encontrada")
	})

	t.Run("unknown error becomes generic 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("pq: relation does not exist"))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.JSONEq(t, `{"error":"error interno del servidor"}`, rec.Body.String())
		require.NotContains(t, rec.Body.String(), "relation")
	})
}

func TestIdempotencyMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	idem := Idem{R: client, TTL: time.Minute}
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
	first.Header.Set("Idempotency-Key", "venta-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, calls)

	replay := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
	replay.Header.Set("Idempotency-Key", "venta-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, replay)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "solicitud duplicada")
	require.Equal(t, 1, calls)

	// A different key passes through.
	other := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
	other.Header.Set("Idempotency-Key", "venta-456")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 2, calls)

	// No key disables the guard.
	bare := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, bare)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 3, calls)
}
