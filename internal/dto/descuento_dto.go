package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SolicitarDescuentoRequest struct {
	CuentaID string `json:"cuenta_id" validate:"required,uuid"`
	// PoliticaID is optional: a request without a policy carries no caps but
	// always goes through approval.
	PoliticaID      string          `json:"politica_id"      validate:"omitempty,uuid"`
	Categoria       string          `json:"categoria"        validate:"required_without=PoliticaID,max=50"`
	TipoCalculo     string          `json:"tipo_calculo"     validate:"required,oneof=porcentaje fijo"`
	ValorSolicitado decimal.Decimal `json:"valor_solicitado" validate:"required,gt=0"`
	Justificacion   string          `json:"justificacion"    validate:"required,min=10"`
}

type RechazarDescuentoRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

type CrearPoliticaRequest struct {
	Nombre             string           `json:"nombre"              validate:"required,min=3,max=100"`
	Categoria          string           `json:"categoria"           validate:"required,min=3,max=50"`
	PorcentajeMaximo   decimal.Decimal  `json:"porcentaje_maximo"   validate:"min=0"`
	MontoMaximo        *decimal.Decimal `json:"monto_maximo"        validate:"omitempty"`
	RolesPermitidos    []string         `json:"roles_permitidos"    validate:"required,min=1,dive,oneof=cajero supervisor administrador"`
	RequiereAprobacion bool             `json:"requiere_aprobacion"`
	RolesAprobadores   []string         `json:"roles_aprobadores"   validate:"omitempty,dive,oneof=supervisor administrador"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DescuentoResponse struct {
	ID              string          `json:"id"`
	Numero          int64           `json:"numero"`
	CuentaID        string          `json:"cuenta_id"`
	PoliticaID      *string         `json:"politica_id"`
	Categoria       string          `json:"categoria"`
	TipoCalculo     string          `json:"tipo_calculo"`
	ValorSolicitado decimal.Decimal `json:"valor_solicitado"`
	MontoBase       decimal.Decimal `json:"monto_base"`
	MontoCalculado  decimal.Decimal `json:"monto_calculado"`
	Estado          string          `json:"estado"`
	SolicitanteID   string          `json:"solicitante_id"`
	AprobadorID     *string         `json:"aprobador_id"`
	Justificacion   string          `json:"justificacion"`
	MotivoRechazo   *string         `json:"motivo_rechazo"`
	CreatedAt       string          `json:"created_at"`
}

type PoliticaResponse struct {
	ID                 string           `json:"id"`
	Nombre             string           `json:"nombre"`
	Categoria          string           `json:"categoria"`
	PorcentajeMaximo   decimal.Decimal  `json:"porcentaje_maximo"`
	MontoMaximo        *decimal.Decimal `json:"monto_maximo"`
	RolesPermitidos    []string         `json:"roles_permitidos"`
	RequiereAprobacion bool             `json:"requiere_aprobacion"`
	RolesAprobadores   []string         `json:"roles_aprobadores"`
	Activa             bool             `json:"activa"`
}
