package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deposito moves cash/checks collected by a register session into a bank
// account, with a confirmation step by a second role.
// Estado: "preparado" | "depositado" | "confirmado" | "rechazado" | "cancelado"
// MontoTotal (= efectivo + cheques) is computed server-side on prepare and
// never mutated afterwards; the estado only advances forward except for the
// terminal rechazo/cancelación paths.
type Deposito struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroDeposito  int64     `gorm:"uniqueIndex;autoIncrement;not null"`
	CuentaBancaria  string    `gorm:"type:varchar(40);not null"`
	// SesionCajaID is the source session; nil for deposits of loose cash
	SesionCajaID  *uuid.UUID      `gorm:"type:uuid;index"`
	MontoEfectivo decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoCheques  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado        string          `gorm:"type:varchar(20);not null;default:'preparado'"`
	PreparadorID  uuid.UUID       `gorm:"type:uuid;not null"`
	// ConfirmadorID must differ from PreparadorID (segregation of duties)
	ConfirmadorID *uuid.UUID `gorm:"type:uuid"`
	// NumeroBoleta is the bank slip number recorded on confirmation
	NumeroBoleta  *string `gorm:"type:varchar(40)"`
	MotivoRechazo *string
	Observaciones *string
	PreparadoAt   time.Time
	DepositadoAt  *time.Time
	ConfirmadoAt  *time.Time
}

func (Deposito) TableName() string { return "depositos" }
