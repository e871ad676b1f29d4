package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fergasdev/backend-fergas/internal/common"
)

// Handler exposes the catalog HTTP endpoints.
type Handler struct {
	Service         *Service
	DefaultPageSize int
	MaxPageSize     int
}

// Routes mounts the catalog endpoints. adminOnly wraps the write endpoints.
func (h *Handler) Routes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})
	r.Route("/gastypes", func(r chi.Router) {
		r.Get("/", h.ListGasTypes)
		r.Get("/{id}", h.GetGasType)
		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/", h.CreateGasType)
			r.Put("/{id}", h.UpdateGasType)
			r.Delete("/{id}", h.DeleteGasType)
		})
	})
	r.Route("/washers", func(r chi.Router) {
		r.Get("/", h.ListWashers)
		r.With(adminOnly).Post("/", h.CreateWasher)
	})
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.ListClients)
		r.Get("/{id}", h.GetClient)
		r.Post("/", h.CreateClient)
	})
}

func (h *Handler) listQuery(r *http.Request) common.ListQuery {
	return common.ParseListQuery(r, h.DefaultPageSize, h.MaxPageSize)
}

// writeList renders either a bare array or an {items, total} envelope,
// depending on whether the caller asked for pagination.
func writeList[T any](w http.ResponseWriter, result ListResult[T]) {
	if !result.Paged {
		common.JSON(w, http.StatusOK, result.Items)
		return
	}
	common.JSON(w, http.StatusOK, common.PagedResult[T]{Items: result.Items, Total: result.Total})
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ListProducts(r.Context(), h.listQuery(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	writeList(w, result)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "id inválido")
		return
	}
	p, err := h.Service.GetProduct(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, p)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "payload inválido")
		return
	}
	p, err := h.Service.CreateProduct(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "id inválido")
		return
	}
	var in ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "payload inválido")
		return
	}
	p, err := h.Service.UpdateProduct(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "id inválido")
		return
	}
	if err := h.Service.DeleteProduct(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListGasTypes(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ListGasTypes(r.Context(), h.listQuery(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	writeList(w, result)
}

func (h *Handler) GetGasType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "id inválido")
		return
	}
	g, err := h.Service.GetGasType(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, g)
}

func (h *Handler) CreateGasType(w http.ResponseWriter, r *http.Request) {
	var in GasTypeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "payload inválido")
		return
	}
	g, err := h.Service.CreateGasType(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, g)
}

func (h *Handler) UpdateGasType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "id inválido")
		return
	}
	var in GasTypeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "payload inválido")
		return
	}
	g, err := h.Service.UpdateGasType(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, g)
}

func (h *Handler) DeleteGasType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "id inválido")
		return
	}
	if err := h.Service.DeleteGasType(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListWashers(w http.ResponseWriter, r *http.Request) {
	washers, err := h.Service.ListWashers(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, washers)
}

func (h *Handler) CreateWasher(w http.ResponseWriter, r *http.Request) {
	var in WasherInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "payload inválido")
		return
	}
	washer, err := h.Service.CreateWasher(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, washer)
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ListClients(r.Context(), h.listQuery(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	writeList(w, result)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "id inválido")
		return
	}
	c, err := h.Service.GetClient(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, c)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var in ClientInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "payload inválido")
		return
	}
	c, err := h.Service.CreateClient(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, c)
}
