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

type ReciboRepository interface {
	CreateTx(tx *gorm.DB, r *model.Recibo) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Recibo, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Recibo, error)
	UpdateTx(tx *gorm.DB, r *model.Recibo) error
	Update(ctx context.Context, r *model.Recibo) error
	List(ctx context.Context, serie string, page, limit int) ([]model.Recibo, int64, error)
	// NextFolioTx atomically advances the per-series counter inside the
	// emitting transaction. A concurrent emit on the same series blocks on
	// the row until this transaction commits, which is what makes folios
	// gap-free: an aborted transaction rolls the increment back.
	NextFolioTx(tx *gorm.DB, serie string) (int64, error)
	EnsureSerie(ctx context.Context, serie string) error
	ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.Recibo, error)
	// TotalEmitidoEntre sums receipt totals within a range, excluding
	// cancelled receipts.
	TotalEmitidoEntre(ctx context.Context, desde, hasta time.Time) (decimal.Decimal, error)
	DB() *gorm.DB
}

type reciboRepo struct{ db *gorm.DB }

func NewReciboRepository(db *gorm.DB) ReciboRepository { return &reciboRepo{db: db} }

func (r *reciboRepo) DB() *gorm.DB { return r.db }

func (r *reciboRepo) CreateTx(tx *gorm.DB, rec *model.Recibo) error {
	return tx.Create(rec).Error
}

func (r *reciboRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Recibo, error) {
	var rec model.Recibo
	err := r.db.WithContext(ctx).Preload("Items").First(&rec, id).Error
	return &rec, err
}

func (r *reciboRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Recibo, error) {
	var rec model.Recibo
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, id).Error
	return &rec, err
}

func (r *reciboRepo) UpdateTx(tx *gorm.DB, rec *model.Recibo) error {
	return tx.Save(rec).Error
}

func (r *reciboRepo) Update(ctx context.Context, rec *model.Recibo) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *reciboRepo) List(ctx context.Context, serie string, page, limit int) ([]model.Recibo, int64, error) {
	var recibos []model.Recibo
	var total int64
	q := r.db.WithContext(ctx).Model(&model.Recibo{})
	if serie != "" {
		q = q.Where("serie = ?", serie)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Items").Order("emitido_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&recibos).Error
	return recibos, total, err
}

func (r *reciboRepo) NextFolioTx(tx *gorm.DB, serie string) (int64, error) {
	var folio int64
	err := tx.Raw(
		`UPDATE folio_series SET ultimo_folio = ultimo_folio + 1 WHERE serie = ? RETURNING ultimo_folio`,
		serie).Scan(&folio).Error
	if err != nil {
		return 0, err
	}
	if folio == 0 {
		return 0, gorm.ErrRecordNotFound // serie not seeded
	}
	return folio, nil
}

func (r *reciboRepo) EnsureSerie(ctx context.Context, serie string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.FolioSerie{Serie: serie, UltimoFolio: 0}).Error
}

func (r *reciboRepo) ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.Recibo, error) {
	var recibos []model.Recibo
	err := r.db.WithContext(ctx).
		Where("pdf_path IS NULL AND next_retry_at IS NOT NULL AND next_retry_at <= ?", now).
		Order("next_retry_at ASC").
		Limit(limit).
		Preload("Items").
		Find(&recibos).Error
	return recibos, err
}

func (r *reciboRepo) TotalEmitidoEntre(ctx context.Context, desde, hasta time.Time) (decimal.Decimal, error) {
	var raw string
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(total), 0) FROM recibos
		WHERE estado != 'cancelado' AND emitido_at >= ? AND emitido_at < ?`,
		desde, hasta).Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}
