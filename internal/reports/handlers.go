package reports

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fergasdev/backend-fergas/internal/common"
)

// Handler exposes the report HTTP endpoints.
type Handler struct {
	Service *Service
	Now     func() time.Time
}

// Routes mounts the report endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/daily", h.Daily)
		r.Get("/top-products", h.TopProducts)
	})
}

// Daily handles GET /api/reports/daily?from=&to=.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.parseRange(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	totals, err := h.Service.DailyTotals(r.Context(), from, to)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, totals)
}

// TopProducts handles GET /api/reports/top-products?from=&to=&limit=.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.parseRange(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	products, err := h.Service.TopProducts(r.Context(), from, to, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, products)
}

// parseRange defaults to the last 30 days. `to` is exclusive, shifted one day
// past the given date so the whole day counts.
func (h *Handler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	to := now().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -30)

	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errBadDate("from")
		}
		from = parsed
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errBadDate("to")
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, common.Validation("el rango de fechas es inválido")
	}
	return from, to, nil
}

func errBadDate(param string) error {
	return common.Validation(param + " inválido: se espera una fecha ISO-8601")
}
