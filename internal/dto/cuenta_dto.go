package dto

import "github.com/shopspring/decimal"

type CrearCuentaRequest struct {
	PacienteID     string          `json:"paciente_id"     validate:"required,uuid"`
	SaldoPendiente decimal.Decimal `json:"saldo_pendiente" validate:"min=0"`
}

type CuentaResponse struct {
	ID             string          `json:"id"`
	PacienteID     string          `json:"paciente_id"`
	SaldoPendiente decimal.Decimal `json:"saldo_pendiente"`
	Activa         bool            `json:"activa"`
	CreatedAt      string          `json:"created_at"`
}
