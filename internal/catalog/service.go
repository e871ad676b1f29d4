package catalog

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fergasdev/backend-fergas/internal/common"
)

const uniqueViolation = "23505"

// Service wraps catalog persistence with validation and caching.
type Service struct {
	Store    Store
	Cache    Cache
	Logger   zerolog.Logger
	Validate *validator.Validate
}

// NewService constructs the catalog service.
func NewService(store Store, cache Cache, logger zerolog.Logger) *Service {
	return &Service{
		Store:    store,
		Cache:    cache,
		Logger:   logger,
		Validate: validator.New(),
	}
}

// ListResult carries a page (or the full set) of one catalog entity.
type ListResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Paged bool  `json:"-"`
}

// ProductInput is the create/update payload for products.
type ProductInput struct {
	Codigo  string          `json:"codigo" validate:"required"`
	Nombre  string          `json:"nombre" validate:"required"`
	Precio  decimal.Decimal `json:"precio"`
	IVARate decimal.Decimal `json:"iva_rate"`
	Stock   int             `json:"stock" validate:"gte=0"`
}

// GasTypeInput is the create/update payload for gas types.
type GasTypeInput struct {
	Nombre      string          `json:"nombre" validate:"required"`
	Precio      decimal.Decimal `json:"precio"`
	StockLlenos int             `json:"stock_llenos" validate:"gte=0"`
	StockVacios int             `json:"stock_vacios" validate:"gte=0"`
}

// WasherInput is the create payload for washers.
type WasherInput struct {
	Nombre         string          `json:"nombre" validate:"required"`
	PrecioAlquiler decimal.Decimal `json:"precio_alquiler"`
}

// ClientInput is the create payload for clients.
type ClientInput struct {
	Nombre    string  `json:"nombre" validate:"required"`
	Telefono  *string `json:"telefono"`
	Direccion *string `json:"direccion"`
}

func (s *Service) ListProducts(ctx context.Context, q common.ListQuery) (ListResult[Product], error) {
	key := listCacheKey("products", listKeyParams(q))
	var cached ListResult[Product]
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		cached.Paged = q.Paged
		return cached, nil
	} else if err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	items, total, err := s.Store.ListProducts(ctx, q)
	if err != nil {
		return ListResult[Product]{}, err
	}
	result := ListResult[Product]{Items: items, Total: total, Paged: q.Paged}
	if err := s.Cache.SetJSON(ctx, key, result); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return result, nil
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, mapStoreError(err, "producto no encontrado")
	}
	return p, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := s.validateProduct(in); err != nil {
		return Product{}, err
	}
	p, err := s.Store.CreateProduct(ctx, Product{
		Codigo:  in.Codigo,
		Nombre:  in.Nombre,
		Precio:  in.Precio,
		IVARate: in.IVARate,
		Stock:   in.Stock,
	})
	if err != nil {
		return Product{}, mapWriteError(err, "ya existe un producto con ese código")
	}
	s.invalidate(ctx, "catalog:products")
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (Product, error) {
	if err := s.validateProduct(in); err != nil {
		return Product{}, err
	}
	p, err := s.Store.UpdateProduct(ctx, Product{
		ID:      id,
		Codigo:  in.Codigo,
		Nombre:  in.Nombre,
		Precio:  in.Precio,
		IVARate: in.IVARate,
		Stock:   in.Stock,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, common.NewAppError("NOT_FOUND", "producto no encontrado", http.StatusNotFound, err)
		}
		return Product{}, mapWriteError(err, "ya existe un producto con ese código")
	}
	s.invalidate(ctx, "catalog:products")
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.Store.DeleteProduct(ctx, id); err != nil {
		return mapStoreError(err, "producto no encontrado")
	}
	s.invalidate(ctx, "catalog:products")
	return nil
}

func (s *Service) ListGasTypes(ctx context.Context, q common.ListQuery) (ListResult[GasType], error) {
	key := listCacheKey("gastypes", listKeyParams(q))
	var cached ListResult[GasType]
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		cached.Paged = q.Paged
		return cached, nil
	} else if err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	items, total, err := s.Store.ListGasTypes(ctx, q)
	if err != nil {
		return ListResult[GasType]{}, err
	}
	result := ListResult[GasType]{Items: items, Total: total, Paged: q.Paged}
	if err := s.Cache.SetJSON(ctx, key, result); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return result, nil
}

func (s *Service) GetGasType(ctx context.Context, id uuid.UUID) (GasType, error) {
	g, err := s.Store.GetGasType(ctx, id)
	if err != nil {
		return GasType{}, mapStoreError(err, "tipo de gas no encontrado")
	}
	return g, nil
}

func (s *Service) CreateGasType(ctx context.Context, in GasTypeInput) (GasType, error) {
	if err := s.validateGasType(in); err != nil {
		return GasType{}, err
	}
	g, err := s.Store.CreateGasType(ctx, GasType{
		Nombre:      in.Nombre,
		Precio:      in.Precio,
		StockLlenos: in.StockLlenos,
		StockVacios: in.StockVacios,
	})
	if err != nil {
		return GasType{}, mapWriteError(err, "ya existe un tipo de gas con ese nombre")
	}
	s.invalidate(ctx, "catalog:gastypes")
	return g, nil
}

func (s *Service) UpdateGasType(ctx context.Context, id uuid.UUID, in GasTypeInput) (GasType, error) {
	if err := s.validateGasType(in); err != nil {
		return GasType{}, err
	}
	g, err := s.Store.UpdateGasType(ctx, GasType{
		ID:          id,
		Nombre:      in.Nombre,
		Precio:      in.Precio,
		StockLlenos: in.StockLlenos,
		StockVacios: in.StockVacios,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GasType{}, common.NewAppError("NOT_FOUND", "tipo de gas no encontrado", http.StatusNotFound, err)
		}
		return GasType{}, mapWriteError(err, "ya existe un tipo de gas con ese nombre")
	}
	s.invalidate(ctx, "catalog:gastypes")
	return g, nil
}

func (s *Service) DeleteGasType(ctx context.Context, id uuid.UUID) error {
	if err := s.Store.DeleteGasType(ctx, id); err != nil {
		return mapStoreError(err, "tipo de gas no encontrado")
	}
	s.invalidate(ctx, "catalog:gastypes")
	return nil
}

func (s *Service) ListWashers(ctx context.Context) ([]Washer, error) {
	return s.Store.ListWashers(ctx)
}

func (s *Service) CreateWasher(ctx context.Context, in WasherInput) (Washer, error) {
	if err := s.Validate.Struct(in); err != nil {
		return Washer{}, common.Validation("nombre es obligatorio")
	}
	if in.PrecioAlquiler.IsNegative() {
		return Washer{}, common.Validation("precio_alquiler no puede ser negativo")
	}
	return s.Store.CreateWasher(ctx, Washer{
		Nombre:         in.Nombre,
		PrecioAlquiler: in.PrecioAlquiler,
		Disponible:     true,
	})
}

func (s *Service) ListClients(ctx context.Context, q common.ListQuery) (ListResult[Client], error) {
	items, total, err := s.Store.ListClients(ctx, q)
	if err != nil {
		return ListResult[Client]{}, err
	}
	return ListResult[Client]{Items: items, Total: total, Paged: q.Paged}, nil
}

func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	c, err := s.Store.GetClient(ctx, id)
	if err != nil {
		return Client{}, mapStoreError(err, "cliente no encontrado")
	}
	return c, nil
}

func (s *Service) CreateClient(ctx context.Context, in ClientInput) (Client, error) {
	if err := s.Validate.Struct(in); err != nil {
		return Client{}, common.Validation("nombre es obligatorio")
	}
	return s.Store.CreateClient(ctx, Client{
		Nombre:    in.Nombre,
		Telefono:  in.Telefono,
		Direccion: in.Direccion,
	})
}

func (s *Service) validateProduct(in ProductInput) error {
	if err := s.Validate.Struct(in); err != nil {
		return common.Validation("codigo y nombre son obligatorios, stock no puede ser negativo")
	}
	if in.Precio.IsNegative() {
		return common.Validation("precio no puede ser negativo")
	}
	if in.IVARate.IsNegative() || in.IVARate.GreaterThan(decimal.NewFromInt(1)) {
		return common.Validation("iva_rate debe estar entre 0 y 1")
	}
	return nil
}

func (s *Service) validateGasType(in GasTypeInput) error {
	if err := s.Validate.Struct(in); err != nil {
		return common.Validation("nombre es obligatorio, stocks no pueden ser negativos")
	}
	if in.Precio.IsNegative() {
		return common.Validation("precio no puede ser negativo")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, prefix string) {
	if err := s.Cache.InvalidatePrefix(ctx, prefix); err != nil {
		s.Logger.Warn().Err(err).Str("prefix", prefix).Msg("catalog cache invalidation failed")
	}
}

func mapStoreError(err error, notFoundMsg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewAppError("NOT_FOUND", notFoundMsg, http.StatusNotFound, err)
	}
	return err
}

func mapWriteError(err error, conflictMsg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return common.NewAppError("CONFLICT", conflictMsg, http.StatusConflict, err)
	}
	return err
}
