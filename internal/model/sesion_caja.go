package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SesionCaja represents the lifecycle of a cashier's daily till.
// Estado: "abierta" | "arqueo" | "cerrada"
// At most one non-cerrada session may exist per cajero — enforced by a
// partial unique index (see infra schema patches), not only in code.
type SesionCaja struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroSesion int64     `gorm:"uniqueIndex;autoIncrement;not null"`
	CajeroID     uuid.UUID `gorm:"type:uuid;not null;index"`
	// Turno: "manana" | "tarde" | "noche" — informational only
	Turno        string          `gorm:"type:varchar(10);not null"`
	MontoInicial decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// MontoEsperado is computed at arqueo as the signed sum of movimientos;
	// the opening float enters the ledger as a fondo_apertura movement
	MontoEsperado  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MontoDeclarado *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Desvio         *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Estado         string           `gorm:"type:varchar(20);not null;default:'abierta'"`
	// Justificacion is mandatory when |Desvio| exceeds the policy threshold
	Justificacion *string
	// AutorizadorID is the supervisor who approved an over-threshold desvío
	AutorizadorID *uuid.UUID `gorm:"type:uuid"`
	Observaciones *string
	OpenedAt      time.Time
	ClosedAt      *time.Time

	Movimientos []MovimientoCaja `gorm:"foreignKey:SesionCajaID"`
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

// Movement kinds. Monto is always positive; EsIngreso decides the sign when
// deriving the expected balance.
const (
	MovIngreso       = "ingreso"
	MovEgreso        = "egreso"
	MovFondoApertura = "fondo_apertura"
	MovRetiroParcial = "retiro_parcial"
	MovDepositoBanco = "deposito_banco"
)

// MovimientoCaja is an immutable event in the cash register ledger.
// Movements are NEVER modified or deleted — reversals create inverse entries.
type MovimientoCaja struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID uuid.UUID `gorm:"type:uuid;index;not null"`
	Tipo         string    `gorm:"type:varchar(20);not null"`
	Monto        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Concepto     string          `gorm:"not null"`
	MetodoPago   *string         `gorm:"type:varchar(20)"`
	// ReferenciaID links to the originating recibo, devolución or depósito
	ReferenciaID *uuid.UUID `gorm:"type:uuid"`
	CajeroID     uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt    time.Time
}

func (MovimientoCaja) TableName() string { return "movimientos_caja" }

// EsIngreso reports whether the movement adds cash to the till.
func (m *MovimientoCaja) EsIngreso() bool {
	return m.Tipo == MovIngreso || m.Tipo == MovFondoApertura
}

// Efecto returns the signed contribution of the movement to the expected
// balance.
func (m *MovimientoCaja) Efecto() decimal.Decimal {
	if m.EsIngreso() {
		return m.Monto
	}
	return m.Monto.Neg()
}
