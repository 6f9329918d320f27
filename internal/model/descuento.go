package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PoliticaDescuento caps what a discount request may ask for and declares who
// may request and who may approve.
type PoliticaDescuento struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre    string    `gorm:"not null;uniqueIndex"`
	Categoria string    `gorm:"type:varchar(30);not null"`
	// PorcentajeMaximo caps percentage discounts (0–100)
	PorcentajeMaximo decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	// MontoMaximo optionally caps the absolute amount regardless of type
	MontoMaximo        *decimal.Decimal `gorm:"type:decimal(12,2)"`
	RolesPermitidos    Roles            `gorm:"type:text;not null"`
	RequiereAprobacion bool             `gorm:"not null;default:true"`
	RolesAprobadores   Roles            `gorm:"type:text;not null"`
	Activa             bool             `gorm:"not null;default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (PoliticaDescuento) TableName() string { return "politicas_descuento" }

// Calculation types for Descuento.
const (
	CalculoPorcentaje = "porcentaje"
	CalculoFijo       = "fijo"
)

// Descuento is an authorized reduction applied to a patient account balance.
// Estado: "pendiente" | "autorizado" | "aplicado" | "rechazado" | "revertido"
// MontoCalculado never exceeds the policy caps; only the aplicado transition
// mutates the account balance.
type Descuento struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Numero     int64      `gorm:"uniqueIndex;autoIncrement;not null"`
	CuentaID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	PoliticaID *uuid.UUID `gorm:"type:uuid"`
	Categoria  string     `gorm:"type:varchar(30);not null"`
	// TipoCalculo: "porcentaje" | "fijo"
	TipoCalculo     string          `gorm:"type:varchar(12);not null"`
	ValorSolicitado decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// MontoBase is the account's outstanding balance at request time
	MontoBase      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoCalculado decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado         string          `gorm:"type:varchar(20);not null;default:'pendiente'"`
	SolicitanteID  uuid.UUID       `gorm:"type:uuid;not null"`
	AprobadorID    *uuid.UUID      `gorm:"type:uuid"`
	Justificacion  string          `gorm:"not null"`
	MotivoRechazo  *string
	Observaciones  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Politica *PoliticaDescuento `gorm:"foreignKey:PoliticaID"`
}

func (Descuento) TableName() string { return "descuentos" }
