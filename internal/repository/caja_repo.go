package repository

import (
	"context"
	"time"

	"hospicaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CajaRepository interface {
	CreateSesionTx(tx *gorm.DB, s *model.SesionCaja) error
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	// FindSesionByIDForUpdate locks the row for the duration of tx so a
	// concurrent transition on the same session blocks until commit.
	FindSesionByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error)
	FindSesionAbiertaPorCajero(ctx context.Context, cajeroID uuid.UUID) (*model.SesionCaja, error)
	UpdateSesionTx(tx *gorm.DB, s *model.SesionCaja) error
	CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error
	ListMovimientos(ctx context.Context, sesionID uuid.UUID) ([]model.MovimientoCaja, error)
	// SumMovimientosTx returns the signed sum of all movements of a session
	// (ingresos positive, egresos negative), computed inside tx.
	SumMovimientosTx(tx *gorm.DB, sesionID uuid.UUID) (decimal.Decimal, error)
	ListSesiones(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error)
	// ListSesionesEntre returns the sessions opened within [desde, hasta) with
	// their movement ledger loaded, for the reconciliation report.
	ListSesionesEntre(ctx context.Context, desde, hasta time.Time) ([]model.SesionCaja, error)
	DB() *gorm.DB // exposes the DB for transaction creation in the service layer
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

func (r *cajaRepo) CreateSesionTx(tx *gorm.DB, s *model.SesionCaja) error {
	return tx.Create(s).Error
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).Preload("Movimientos").First(&s, id).Error
	return &s, err
}

func (r *cajaRepo) FindSesionByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, id).Error
	return &s, err
}

func (r *cajaRepo) FindSesionAbiertaPorCajero(ctx context.Context, cajeroID uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("cajero_id = ? AND estado IN ('abierta', 'arqueo')", cajeroID).
		First(&s).Error
	return &s, err
}

func (r *cajaRepo) UpdateSesionTx(tx *gorm.DB, s *model.SesionCaja) error {
	return tx.Save(s).Error
}

func (r *cajaRepo) CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error {
	return tx.Create(m).Error
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, sesionID uuid.UUID) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).
		Where("sesion_caja_id = ?", sesionID).
		Order("created_at ASC").
		Find(&movs).Error
	return movs, err
}

func (r *cajaRepo) SumMovimientosTx(tx *gorm.DB, sesionID uuid.UUID) (decimal.Decimal, error) {
	var raw string
	err := tx.Raw(`
		SELECT COALESCE(SUM(CASE
			WHEN tipo IN ('ingreso', 'fondo_apertura') THEN monto
			ELSE -monto
		END), 0)
		FROM movimientos_caja WHERE sesion_caja_id = ?`, sesionID).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (r *cajaRepo) ListSesiones(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error) {
	var sesiones []model.SesionCaja
	var total int64
	q := r.db.WithContext(ctx).Model(&model.SesionCaja{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("opened_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&sesiones).Error
	return sesiones, total, err
}

func (r *cajaRepo) ListSesionesEntre(ctx context.Context, desde, hasta time.Time) ([]model.SesionCaja, error) {
	var sesiones []model.SesionCaja
	err := r.db.WithContext(ctx).
		Preload("Movimientos").
		Where("opened_at >= ? AND opened_at < ?", desde, hasta).
		Order("opened_at ASC").
		Find(&sesiones).Error
	return sesiones, err
}
