package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MotivoDevolucion is the catalog of return reasons. Motives flagged
// RequiereAutorizacion force the pendiente_autorizacion path.
type MotivoDevolucion struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Codigo               string    `gorm:"type:varchar(30);uniqueIndex;not null"`
	Categoria            string    `gorm:"type:varchar(30);not null"`
	Descripcion          string    `gorm:"not null"`
	RequiereAutorizacion bool      `gorm:"not null;default:true"`
	Activo               bool      `gorm:"not null;default:true"`
}

func (MotivoDevolucion) TableName() string { return "motivos_devolucion" }

// Return kinds.
const (
	DevProducto       = "producto"
	DevServicio       = "servicio"
	DevCuentaCompleta = "cuenta_completa"
)

// Physical condition of a returned item.
const (
	CondicionBuena  = "bueno"
	CondicionDanado = "danado"
)

// Devolucion reverses previously charged products or services.
// Estado: "pendiente_autorizacion" | "autorizada" | "procesada" | "rechazada" | "cancelada"
// MontoReembolso equals the sum of item subtotals for partial returns, or the
// account outstanding total for cuenta_completa.
type Devolucion struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Numero   int64     `gorm:"uniqueIndex;autoIncrement;not null"`
	CuentaID uuid.UUID `gorm:"type:uuid;not null;index"`
	// Tipo: "producto" | "servicio" | "cuenta_completa"
	Tipo           string          `gorm:"type:varchar(20);not null"`
	MotivoID       uuid.UUID       `gorm:"type:uuid;not null"`
	Estado         string          `gorm:"type:varchar(30);not null;default:'pendiente_autorizacion'"`
	MontoReembolso decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SolicitanteID  uuid.UUID       `gorm:"type:uuid;not null"`
	AprobadorID    *uuid.UUID      `gorm:"type:uuid"`
	ProcesadorID   *uuid.UUID      `gorm:"type:uuid"`
	MetodoPago     *string         `gorm:"type:varchar(20)"`
	MotivoRechazo  *string
	Observaciones  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ProcesadaAt    *time.Time

	Motivo *MotivoDevolucion `gorm:"foreignKey:MotivoID"`
	Items  []DevolucionItem  `gorm:"foreignKey:DevolucionID"`
}

func (Devolucion) TableName() string { return "devoluciones" }

// DevolucionItem is one returned line. CantidadDevuelta never exceeds
// CantidadOriginal; restocking only happens for items in good condition with
// RegresaInventario set.
type DevolucionItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DevolucionID uuid.UUID `gorm:"type:uuid;index;not null"`
	// ProductoID is nil for returned services
	ProductoID     *uuid.UUID      `gorm:"type:uuid"`
	Descripcion    string          `gorm:"not null"`
	CantidadOriginal int           `gorm:"not null"`
	CantidadDevuelta int           `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// CondicionFisica: "bueno" | "danado"
	CondicionFisica   string `gorm:"type:varchar(10);not null"`
	RegresaInventario bool   `gorm:"not null;default:false"`
}

func (DevolucionItem) TableName() string { return "devolucion_items" }
