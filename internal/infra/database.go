package infra

import (
	"fmt"

	"hospicaja/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies idempotent SQL patches that GORM
// cannot express (partial unique indexes, counter seeding).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations creates / updates all tables and applies the SQL patches.
// Also used by integration tests against a scratch database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Usuario{},
		&model.CuentaPaciente{},
		&model.SesionCaja{},
		&model.MovimientoCaja{},
		&model.Deposito{},
		&model.PoliticaDescuento{},
		&model.Descuento{},
		&model.MotivoDevolucion{},
		&model.Devolucion{},
		&model.DevolucionItem{},
		&model.FolioSerie{},
		&model.Recibo{},
		&model.ReciboItem{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}

	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement is guarded by an existence check so re-running on an
// already-patched schema is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one non-cerrada session per cajero. The service checks this
		// too, but only the index closes the race between two concurrent
		// aperturas — the loser gets SQLSTATE 23505, mapped to a conflict.
		{"partial unique index: one open caja per cajero", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_sesiones_caja_cajero_abierta') THEN
    CREATE UNIQUE INDEX uni_sesiones_caja_cajero_abierta
        ON sesiones_caja (cajero_id)
        WHERE estado IN ('abierta', 'arqueo');
  END IF;
END $$`},
		// Partial index backing the PDF retry cron query.
		{"partial index: recibos pending PDF retry", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_recibos_pending_retry') THEN
    CREATE INDEX idx_recibos_pending_retry
        ON recibos (next_retry_at)
        WHERE pdf_path IS NULL AND next_retry_at IS NOT NULL;
  END IF;
END $$`},
		// Movements reference the recibo / devolución / depósito that created
		// them; reversals look them up by that reference.
		{"index: movimientos_caja by referencia", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_movimientos_caja_referencia') THEN
    CREATE INDEX idx_movimientos_caja_referencia
        ON movimientos_caja (referencia_id)
        WHERE referencia_id IS NOT NULL;
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
