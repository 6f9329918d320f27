package repository

import (
	"context"

	"hospicaja/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DevolucionRepository interface {
	CreateTx(tx *gorm.DB, d *model.Devolucion) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Devolucion, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Devolucion, error)
	// ListItemsTx loads the items of a devolución inside tx (the locked
	// parent row does not preload associations).
	ListItemsTx(tx *gorm.DB, devolucionID uuid.UUID) ([]model.DevolucionItem, error)
	UpdateTx(tx *gorm.DB, d *model.Devolucion) error
	List(ctx context.Context, estado string, page, limit int) ([]model.Devolucion, int64, error)

	FindMotivoByID(ctx context.Context, id uuid.UUID) (*model.MotivoDevolucion, error)
	CreateMotivo(ctx context.Context, m *model.MotivoDevolucion) error
	ListMotivos(ctx context.Context) ([]model.MotivoDevolucion, error)
	DB() *gorm.DB
}

type devolucionRepo struct{ db *gorm.DB }

func NewDevolucionRepository(db *gorm.DB) DevolucionRepository { return &devolucionRepo{db: db} }

func (r *devolucionRepo) DB() *gorm.DB { return r.db }

func (r *devolucionRepo) CreateTx(tx *gorm.DB, d *model.Devolucion) error {
	// Items are created in the same statement via the association
	return tx.Create(d).Error
}

func (r *devolucionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Devolucion, error) {
	var d model.Devolucion
	err := r.db.WithContext(ctx).Preload("Items").Preload("Motivo").First(&d, id).Error
	return &d, err
}

func (r *devolucionRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Devolucion, error) {
	var d model.Devolucion
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, id).Error
	return &d, err
}

func (r *devolucionRepo) ListItemsTx(tx *gorm.DB, devolucionID uuid.UUID) ([]model.DevolucionItem, error) {
	var items []model.DevolucionItem
	err := tx.Where("devolucion_id = ?", devolucionID).Find(&items).Error
	return items, err
}

func (r *devolucionRepo) UpdateTx(tx *gorm.DB, d *model.Devolucion) error {
	return tx.Save(d).Error
}

func (r *devolucionRepo) List(ctx context.Context, estado string, page, limit int) ([]model.Devolucion, int64, error) {
	var devoluciones []model.Devolucion
	var total int64
	q := r.db.WithContext(ctx).Model(&model.Devolucion{})
	if estado != "" && estado != "all" {
		q = q.Where("estado = ?", estado)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Items").Preload("Motivo").Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&devoluciones).Error
	return devoluciones, total, err
}

func (r *devolucionRepo) FindMotivoByID(ctx context.Context, id uuid.UUID) (*model.MotivoDevolucion, error) {
	var m model.MotivoDevolucion
	err := r.db.WithContext(ctx).First(&m, id).Error
	return &m, err
}

func (r *devolucionRepo) CreateMotivo(ctx context.Context, m *model.MotivoDevolucion) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *devolucionRepo) ListMotivos(ctx context.Context) ([]model.MotivoDevolucion, error) {
	var motivos []model.MotivoDevolucion
	err := r.db.WithContext(ctx).Where("activo = true").Order("codigo ASC").Find(&motivos).Error
	return motivos, err
}
