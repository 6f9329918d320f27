package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ReciboItemRequest struct {
	Descripcion    string          `json:"descripcion"     validate:"required,min=2"`
	Cantidad       int             `json:"cantidad"        validate:"required,gt=0"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"min=0"`
}

type PagarCuentaRequest struct {
	CuentaID       string              `json:"cuenta_id"       validate:"required,uuid"`
	SesionCajaID   string              `json:"sesion_caja_id"  validate:"required,uuid"`
	Tipo           string              `json:"tipo"            validate:"required,oneof=pago_cuenta pago_parcial anticipo"`
	MontoRecibido  decimal.Decimal     `json:"monto_recibido"  validate:"required,gt=0"`
	MetodoPago     string              `json:"metodo_pago"     validate:"required,oneof=efectivo tarjeta transferencia cheque"`
	Items          []ReciboItemRequest `json:"items"           validate:"omitempty,dive"`
}

type CancelarReciboRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ReciboItemResponse struct {
	Descripcion    string          `json:"descripcion"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

type ReciboResponse struct {
	ID                string               `json:"id"`
	Serie             string               `json:"serie"`
	Folio             int64                `json:"folio"`
	Tipo              string               `json:"tipo"`
	CuentaID          *string              `json:"cuenta_id"`
	PacienteID        *string              `json:"paciente_id"`
	MontoRecibido     decimal.Decimal      `json:"monto_recibido"`
	Cambio            decimal.Decimal      `json:"cambio"`
	MetodoPago        string               `json:"metodo_pago"`
	Subtotal          decimal.Decimal      `json:"subtotal"`
	Impuesto          decimal.Decimal      `json:"impuesto"`
	Total             decimal.Decimal      `json:"total"`
	Estado            string               `json:"estado"`
	EmisorID          string               `json:"emisor_id"`
	EmitidoAt         string               `json:"emitido_at"`
	MotivoCancelacion *string              `json:"motivo_cancelacion"`
	PDFPath           *string              `json:"pdf_path"`
	Items             []ReciboItemResponse `json:"items"`
}
