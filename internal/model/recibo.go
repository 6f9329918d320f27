package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt kinds.
const (
	ReciboPagoCuenta  = "pago_cuenta"
	ReciboPagoParcial = "pago_parcial"
	ReciboAnticipo    = "anticipo"
	ReciboReembolso   = "reembolso"
)

// Recibo is an immutable proof-of-payment document.
// Estado: "emitido" | "reimpreso" | "cancelado"
// Folio+Serie is globally unique and gap-free; cancellation flags the record
// and excludes it from revenue totals, it never deletes.
type Recibo struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Serie string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_recibos_serie_folio"`
	Folio int64     `gorm:"not null;uniqueIndex:idx_recibos_serie_folio"`
	Tipo  string    `gorm:"type:varchar(20);not null"`

	CuentaID   uuid.UUID `gorm:"type:uuid;not null;index"`
	PacienteID uuid.UUID `gorm:"type:uuid;not null"`
	// EventoOrigenID references the originating descuento, devolución or
	// account payment movement
	EventoOrigenID *uuid.UUID `gorm:"type:uuid"`

	MontoRecibido decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Cambio        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MetodoPago    string          `gorm:"type:varchar(20);not null"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Impuesto      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Estado   string    `gorm:"type:varchar(20);not null;default:'emitido'"`
	EmisorID uuid.UUID `gorm:"type:uuid;not null"`
	EmitidoAt time.Time

	CanceladoPor      *uuid.UUID `gorm:"type:uuid"`
	CanceladoAt       *time.Time
	MotivoCancelacion *string

	// PDFPath is relative to PDF_STORAGE_PATH; rendered async by the worker
	PDFPath *string `gorm:"column:pdf_path"`
	// Retry fields — used by retry_cron to re-attempt failed PDF renders
	RetryCount  int        `gorm:"not null;default:0"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at"`
	LastError   *string

	Items []ReciboItem `gorm:"foreignKey:ReciboID"`
}

func (Recibo) TableName() string { return "recibos" }

// ReciboItem is one line on a receipt.
type ReciboItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ReciboID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	Descripcion    string          `gorm:"not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (ReciboItem) TableName() string { return "recibo_items" }

// FolioSerie is the per-series folio counter. The emitting transaction
// increments UltimoFolio atomically (UPDATE … RETURNING) so concurrent
// emissions never duplicate or skip a folio, and aborted transactions leave
// no gaps. Multiple server instances agree because the counter lives in the
// database, never in process memory.
type FolioSerie struct {
	Serie       string `gorm:"type:varchar(10);primaryKey"`
	UltimoFolio int64  `gorm:"not null;default:0"`
}

func (FolioSerie) TableName() string { return "folio_series" }
