package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CuentaPaciente is a patient's open running account. The wider hospital
// system owns charge/credit entry; this core only reads the outstanding
// balance and adjusts it from inside apply/revert/process transactions,
// always under a row lock so two discounts can never subtract from a stale
// balance.
type CuentaPaciente struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PacienteID uuid.UUID `gorm:"type:uuid;not null;index"`
	// SaldoPendiente is the amount the patient still owes; a negative value
	// is credit in the patient's favor (anticipos)
	SaldoPendiente decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Activa         bool            `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (CuentaPaciente) TableName() string { return "cuentas_paciente" }
