package sales

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fergasdev/backend-fergas/internal/common"
)

// Handler exposes the sales HTTP endpoints.
type Handler struct {
	Service         *Service
	DefaultPageSize int
	MaxPageSize     int
}

// Routes mounts the sales endpoints.
func (h *Handler) Routes(r chi.Router, commitMiddleware ...func(http.Handler) http.Handler) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.With(commitMiddleware...).Post("/", h.Commit)
	})
}

// Commit handles POST /api/sales.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "payload inválido")
		return
	}
	authUserID, _ := common.UserID(r.Context())
	sale, err := h.Service.Commit(r.Context(), authUserID, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, sale)
}

// List handles GET /api/sales.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{ListQuery: common.ParseListQuery(r, h.DefaultPageSize, h.MaxPageSize)}

	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := parseDateParam(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "from inválido: se espera una fecha ISO-8601")
			return
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, err := parseDateParam(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "to inválido: se espera una fecha ISO-8601")
			return
		}
		filter.To = &to
	}
	if raw := strings.TrimSpace(q.Get("clientId")); raw != "" {
		clientID, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "clientId inválido")
			return
		}
		filter.ClientID = &clientID
	}

	items, total, err := h.Service.List(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if !filter.Paged {
		common.JSON(w, http.StatusOK, items)
		return
	}
	common.JSON(w, http.StatusOK, common.PagedResult[Sale]{Items: items, Total: total})
}

// Get handles GET /api/sales/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "id inválido")
		return
	}
	sale, err := h.Service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, sale)
}

func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
