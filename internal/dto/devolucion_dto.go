package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type DevolucionItemRequest struct {
	ProductoID       *string         `json:"producto_id"        validate:"omitempty,uuid"`
	Descripcion      string          `json:"descripcion"        validate:"required,min=3"`
	CantidadOriginal int             `json:"cantidad_original"  validate:"required,gt=0"`
	CantidadDevuelta int             `json:"cantidad_devuelta"  validate:"required,gt=0"`
	PrecioUnitario   decimal.Decimal `json:"precio_unitario"    validate:"min=0"`
	CondicionFisica  string          `json:"condicion_fisica"   validate:"required,oneof=bueno danado"`
	RegresaInventario bool           `json:"regresa_inventario"`
}

type CrearDevolucionRequest struct {
	CuentaID      string                  `json:"cuenta_id"       validate:"required,uuid"`
	Tipo          string                  `json:"tipo"            validate:"required,oneof=producto servicio cuenta_completa"`
	MotivoID      string                  `json:"motivo_id"       validate:"required,uuid"`
	MontoReembolso *decimal.Decimal       `json:"monto_reembolso" validate:"omitempty"`
	MetodoPago    string                  `json:"metodo_pago"     validate:"required,oneof=efectivo tarjeta transferencia"`
	Items         []DevolucionItemRequest `json:"items"           validate:"omitempty,dive"`
	Observaciones *string                 `json:"observaciones"`
}

type RechazarDevolucionRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

type ProcesarDevolucionRequest struct {
	SesionCajaID string `json:"sesion_caja_id" validate:"required,uuid"`
}

type CrearMotivoRequest struct {
	Codigo               string `json:"codigo"                validate:"required,min=2,max=30"`
	Categoria            string `json:"categoria"             validate:"required,min=3,max=50"`
	Descripcion          string `json:"descripcion"           validate:"required,min=5"`
	RequiereAutorizacion bool   `json:"requiere_autorizacion"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DevolucionItemResponse struct {
	ID               string          `json:"id"`
	ProductoID       *string         `json:"producto_id"`
	Descripcion      string          `json:"descripcion"`
	CantidadOriginal int             `json:"cantidad_original"`
	CantidadDevuelta int             `json:"cantidad_devuelta"`
	PrecioUnitario   decimal.Decimal `json:"precio_unitario"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	CondicionFisica  string          `json:"condicion_fisica"`
	RegresaInventario bool           `json:"regresa_inventario"`
}

type DevolucionResponse struct {
	ID             string                   `json:"id"`
	Numero         int64                    `json:"numero"`
	CuentaID       string                   `json:"cuenta_id"`
	Tipo           string                   `json:"tipo"`
	MotivoCodigo   string                   `json:"motivo_codigo"`
	Estado         string                   `json:"estado"`
	MontoReembolso decimal.Decimal          `json:"monto_reembolso"`
	MetodoPago     string                   `json:"metodo_pago"`
	SolicitanteID  string                   `json:"solicitante_id"`
	AprobadorID    *string                  `json:"aprobador_id"`
	ProcesadorID   *string                  `json:"procesador_id"`
	ProcesadaAt    *string                  `json:"procesada_at"`
	Items          []DevolucionItemResponse `json:"items"`
	CreatedAt      string                   `json:"created_at"`
}

type MotivoDevolucionResponse struct {
	ID                   string `json:"id"`
	Codigo               string `json:"codigo"`
	Categoria            string `json:"categoria"`
	Descripcion          string `json:"descripcion"`
	RequiereAutorizacion bool   `json:"requiere_autorizacion"`
}
