package repository

import (
	"context"

	"hospicaja/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DescuentoRepository interface {
	CreateTx(tx *gorm.DB, d *model.Descuento) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Descuento, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Descuento, error)
	UpdateTx(tx *gorm.DB, d *model.Descuento) error
	List(ctx context.Context, estado string, page, limit int) ([]model.Descuento, int64, error)

	CreatePolitica(ctx context.Context, p *model.PoliticaDescuento) error
	FindPoliticaByID(ctx context.Context, id uuid.UUID) (*model.PoliticaDescuento, error)
	ListPoliticas(ctx context.Context, soloActivas bool) ([]model.PoliticaDescuento, error)
	DB() *gorm.DB
}

type descuentoRepo struct{ db *gorm.DB }

func NewDescuentoRepository(db *gorm.DB) DescuentoRepository { return &descuentoRepo{db: db} }

func (r *descuentoRepo) DB() *gorm.DB { return r.db }

func (r *descuentoRepo) CreateTx(tx *gorm.DB, d *model.Descuento) error {
	return tx.Create(d).Error
}

func (r *descuentoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Descuento, error) {
	var d model.Descuento
	err := r.db.WithContext(ctx).Preload("Politica").First(&d, id).Error
	return &d, err
}

func (r *descuentoRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Descuento, error) {
	var d model.Descuento
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, id).Error
	return &d, err
}

func (r *descuentoRepo) UpdateTx(tx *gorm.DB, d *model.Descuento) error {
	return tx.Save(d).Error
}

func (r *descuentoRepo) List(ctx context.Context, estado string, page, limit int) ([]model.Descuento, int64, error) {
	var descuentos []model.Descuento
	var total int64
	q := r.db.WithContext(ctx).Model(&model.Descuento{})
	if estado != "" && estado != "all" {
		q = q.Where("estado = ?", estado)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Politica").Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&descuentos).Error
	return descuentos, total, err
}

func (r *descuentoRepo) CreatePolitica(ctx context.Context, p *model.PoliticaDescuento) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *descuentoRepo) FindPoliticaByID(ctx context.Context, id uuid.UUID) (*model.PoliticaDescuento, error) {
	var p model.PoliticaDescuento
	err := r.db.WithContext(ctx).First(&p, id).Error
	return &p, err
}

func (r *descuentoRepo) ListPoliticas(ctx context.Context, soloActivas bool) ([]model.PoliticaDescuento, error) {
	var politicas []model.PoliticaDescuento
	q := r.db.WithContext(ctx)
	if soloActivas {
		q = q.Where("activa = true")
	}
	err := q.Order("nombre ASC").Find(&politicas).Error
	return politicas, err
}
