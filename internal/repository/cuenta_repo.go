package repository

import (
	"context"

	"hospicaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CuentaRepository is the narrow ledger-account contract of the core: read
// the outstanding balance, adjust it by a delta. Adjustments only happen
// inside apply/revert/process transactions, always on a locked row.
type CuentaRepository interface {
	Create(ctx context.Context, c *model.CuentaPaciente) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CuentaPaciente, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.CuentaPaciente, error)
	// AjustarSaldoTx applies delta (negative = reduce debt) to a row the
	// caller already locked within tx.
	AjustarSaldoTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error
	DB() *gorm.DB
}

type cuentaRepo struct{ db *gorm.DB }

func NewCuentaRepository(db *gorm.DB) CuentaRepository { return &cuentaRepo{db: db} }

func (r *cuentaRepo) DB() *gorm.DB { return r.db }

func (r *cuentaRepo) Create(ctx context.Context, c *model.CuentaPaciente) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *cuentaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CuentaPaciente, error) {
	var c model.CuentaPaciente
	err := r.db.WithContext(ctx).First(&c, id).Error
	return &c, err
}

func (r *cuentaRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.CuentaPaciente, error) {
	var c model.CuentaPaciente
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error
	return &c, err
}

func (r *cuentaRepo) AjustarSaldoTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	return tx.Model(&model.CuentaPaciente{}).
		Where("id = ?", id).
		Update("saldo_pendiente", gorm.Expr("saldo_pendiente + ?", delta)).Error
}
