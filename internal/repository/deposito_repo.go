package repository

import (
	"context"
	"time"

	"hospicaja/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DepositoRepository interface {
	CreateTx(tx *gorm.DB, d *model.Deposito) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Deposito, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Deposito, error)
	UpdateTx(tx *gorm.DB, d *model.Deposito) error
	List(ctx context.Context, estado string, page, limit int) ([]model.Deposito, int64, error)
	// ListConfirmadosEntre returns confirmed deposits within [desde, hasta)
	// for the reconciliation report.
	ListConfirmadosEntre(ctx context.Context, desde, hasta time.Time) ([]model.Deposito, error)
	// ListPorSesion returns every non-terminal-failed deposit sourced from
	// the given session.
	ListPorSesion(ctx context.Context, sesionID uuid.UUID) ([]model.Deposito, error)
	DB() *gorm.DB
}

type depositoRepo struct{ db *gorm.DB }

func NewDepositoRepository(db *gorm.DB) DepositoRepository { return &depositoRepo{db: db} }

func (r *depositoRepo) DB() *gorm.DB { return r.db }

func (r *depositoRepo) CreateTx(tx *gorm.DB, d *model.Deposito) error {
	return tx.Create(d).Error
}

func (r *depositoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Deposito, error) {
	var d model.Deposito
	err := r.db.WithContext(ctx).First(&d, id).Error
	return &d, err
}

func (r *depositoRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Deposito, error) {
	var d model.Deposito
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, id).Error
	return &d, err
}

func (r *depositoRepo) UpdateTx(tx *gorm.DB, d *model.Deposito) error {
	return tx.Save(d).Error
}

func (r *depositoRepo) List(ctx context.Context, estado string, page, limit int) ([]model.Deposito, int64, error) {
	var depositos []model.Deposito
	var total int64
	q := r.db.WithContext(ctx).Model(&model.Deposito{})
	if estado != "" && estado != "all" {
		q = q.Where("estado = ?", estado)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("preparado_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&depositos).Error
	return depositos, total, err
}

func (r *depositoRepo) ListConfirmadosEntre(ctx context.Context, desde, hasta time.Time) ([]model.Deposito, error) {
	var depositos []model.Deposito
	err := r.db.WithContext(ctx).
		Where("estado = 'confirmado' AND confirmado_at >= ? AND confirmado_at < ?", desde, hasta).
		Order("confirmado_at ASC").
		Find(&depositos).Error
	return depositos, err
}

func (r *depositoRepo) ListPorSesion(ctx context.Context, sesionID uuid.UUID) ([]model.Deposito, error) {
	var depositos []model.Deposito
	err := r.db.WithContext(ctx).
		Where("sesion_caja_id = ? AND estado NOT IN ('rechazado', 'cancelado')", sesionID).
		Find(&depositos).Error
	return depositos, err
}
