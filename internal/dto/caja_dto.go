package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	Turno        string          `json:"turno"         validate:"required,oneof=manana tarde noche"`
	MontoInicial decimal.Decimal `json:"monto_inicial" validate:"min=0"`
}

type MovimientoCajaRequest struct {
	SesionCajaID string          `json:"sesion_caja_id" validate:"required,uuid"`
	Tipo         string          `json:"tipo"           validate:"required,oneof=ingreso egreso retiro_parcial deposito_banco"`
	Monto        decimal.Decimal `json:"monto"          validate:"required,gt=0"`
	Concepto     string          `json:"concepto"       validate:"required,min=3"`
	MetodoPago   *string         `json:"metodo_pago"    validate:"omitempty,oneof=efectivo tarjeta transferencia cheque"`
	ReferenciaID *string         `json:"referencia_id"  validate:"omitempty,uuid"`
}

type ArqueoRequest struct {
	SesionCajaID   string          `json:"sesion_caja_id"  validate:"required,uuid"`
	MontoDeclarado decimal.Decimal `json:"monto_declarado" validate:"min=0"`
}

type CerrarCajaRequest struct {
	SesionCajaID string `json:"sesion_caja_id" validate:"required,uuid"`
	// MontoDeclarado performs the arqueo inline when the session is still
	// abierta; ignored when an arqueo was already submitted.
	MontoDeclarado *decimal.Decimal `json:"monto_declarado" validate:"omitempty"`
	Justificacion  *string          `json:"justificacion"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovimientoCajaResponse struct {
	ID         string          `json:"id"`
	Tipo       string          `json:"tipo"`
	Monto      decimal.Decimal `json:"monto"`
	Concepto   string          `json:"concepto"`
	MetodoPago *string         `json:"metodo_pago"`
	CreatedAt  string          `json:"created_at"`
}

type ArqueoResponse struct {
	SesionCajaID   string          `json:"sesion_caja_id"`
	MontoEsperado  decimal.Decimal `json:"monto_esperado"`
	MontoDeclarado decimal.Decimal `json:"monto_declarado"`
	Desvio         decimal.Decimal `json:"desvio"`
	Estado         string          `json:"estado"`
}

type ReporteCajaResponse struct {
	SesionCajaID   string                   `json:"sesion_caja_id"`
	NumeroSesion   int64                    `json:"numero_sesion"`
	CajeroID       string                   `json:"cajero_id"`
	Turno          string                   `json:"turno"`
	MontoInicial   decimal.Decimal          `json:"monto_inicial"`
	MontoEsperado  decimal.Decimal          `json:"monto_esperado"`
	MontoDeclarado *decimal.Decimal         `json:"monto_declarado"`
	Desvio         *decimal.Decimal         `json:"desvio"`
	Estado         string                   `json:"estado"`
	Justificacion  *string                  `json:"justificacion"`
	Movimientos    []MovimientoCajaResponse `json:"movimientos"`
	OpenedAt       string                   `json:"opened_at"`
	ClosedAt       *string                  `json:"closed_at"`
}

type SesionCajaListItem struct {
	SesionCajaID string           `json:"sesion_caja_id"`
	NumeroSesion int64            `json:"numero_sesion"`
	CajeroID     string           `json:"cajero_id"`
	Turno        string           `json:"turno"`
	Estado       string           `json:"estado"`
	Desvio       *decimal.Decimal `json:"desvio"`
	OpenedAt     string           `json:"opened_at"`
	ClosedAt     *string          `json:"closed_at"`
}
