package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a hardware-store product subject to IVA.
type Product struct {
	ID        uuid.UUID       `json:"id"`
	Codigo    string          `json:"codigo"`
	Nombre    string          `json:"nombre"`
	Precio    decimal.Decimal `json:"precio"`
	IVARate   decimal.Decimal `json:"iva_rate"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GasType is a bottled-gas variant tracked as full and empty cylinders.
type GasType struct {
	ID          uuid.UUID       `json:"id"`
	Nombre      string          `json:"nombre"`
	Precio      decimal.Decimal `json:"precio"`
	StockLlenos int             `json:"stock_llenos"`
	StockVacios int             `json:"stock_vacios"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Washer is a washing machine available for rental.
type Washer struct {
	ID             uuid.UUID       `json:"id"`
	Nombre         string          `json:"nombre"`
	PrecioAlquiler decimal.Decimal `json:"precio_alquiler"`
	Disponible     bool            `json:"disponible"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Client is a known customer. Credit sales require one.
type Client struct {
	ID        uuid.UUID `json:"id"`
	Nombre    string    `json:"nombre"`
	Telefono  *string   `json:"telefono"`
	Direccion *string   `json:"direccion"`
	CreatedAt time.Time `json:"created_at"`
}
