package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type PrepararDepositoRequest struct {
	CuentaBancaria string          `json:"cuenta_bancaria" validate:"required,min=4,max=40"`
	SesionCajaID   *string         `json:"sesion_caja_id"  validate:"omitempty,uuid"`
	MontoEfectivo  decimal.Decimal `json:"monto_efectivo"  validate:"min=0"`
	MontoCheques   decimal.Decimal `json:"monto_cheques"   validate:"min=0"`
	Observaciones  *string         `json:"observaciones"`
}

type MarcarDepositadoRequest struct {
	NumeroBoleta string `json:"numero_boleta" validate:"required,min=3,max=60"`
}

type RechazarDepositoRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DepositoResponse struct {
	ID             string          `json:"id"`
	NumeroDeposito int64           `json:"numero_deposito"`
	CuentaBancaria string          `json:"cuenta_bancaria"`
	SesionCajaID   *string         `json:"sesion_caja_id"`
	MontoEfectivo  decimal.Decimal `json:"monto_efectivo"`
	MontoCheques   decimal.Decimal `json:"monto_cheques"`
	MontoTotal     decimal.Decimal `json:"monto_total"`
	Estado         string          `json:"estado"`
	PreparadorID   string          `json:"preparador_id"`
	ConfirmadorID  *string         `json:"confirmador_id"`
	NumeroBoleta   *string         `json:"numero_boleta"`
	MotivoRechazo  *string         `json:"motivo_rechazo"`
	PreparadoAt    string          `json:"preparado_at"`
	DepositadoAt   *string         `json:"depositado_at"`
	ConfirmadoAt   *string         `json:"confirmado_at"`
}

// ConciliacionSesion is the per-session line of the reconciliation report:
// cash collected at the till (movement ledger, deposit movements excluded)
// against the deposits sourced from that session.
type ConciliacionSesion struct {
	SesionCajaID       string          `json:"sesion_caja_id"`
	NumeroSesion       int64           `json:"numero_sesion"`
	Estado             string          `json:"estado"`
	EfectivoRecaudado  decimal.Decimal `json:"efectivo_recaudado"`
	EfectivoConfirmado decimal.Decimal `json:"efectivo_confirmado"`
	EfectivoEnTransito decimal.Decimal `json:"efectivo_en_transito"`
	EfectivoPendiente  decimal.Decimal `json:"efectivo_pendiente"`
	Pendiente          bool            `json:"pendiente"`
}

type ConciliacionResponse struct {
	Desde                string               `json:"desde"`
	Hasta                string               `json:"hasta"`
	TotalRecaudado       decimal.Decimal      `json:"total_recaudado"`
	TotalDepositado      decimal.Decimal      `json:"total_depositado"`
	Diferencia           decimal.Decimal      `json:"diferencia"`
	DepositosConfirmados int                  `json:"depositos_confirmados"`
	Sesiones             []ConciliacionSesion `json:"sesiones"`
	SesionesPendientes   int                  `json:"sesiones_pendientes"`
}
