//go:build integration

package integration

// Concurrency tests against a real Postgres via testcontainers. The in-memory
// fakes of the service suites cannot exercise row locks or the partial unique
// index, so the two properties that depend on them run here:
//
//   - at most one caja session per cajero survives a burst of concurrent
//     aperturas (partial unique index on sesiones_caja)
//   - concurrent emisiones on one serie draw distinct consecutive folios, and
//     an aborted transaction releases its folio for the next taker
//
// Run with: go test -tags integration ./tests/integration/... -v

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"hospicaja/internal/apierror"
	"hospicaja/internal/dto"
	"hospicaja/internal/infra"
	"hospicaja/internal/model"
	"hospicaja/internal/repository"
	"hospicaja/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("hospicaja_test"),
		tcPostgres.WithUsername("hospicaja"),
		tcPostgres.WithPassword("hospicaja"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	return db
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// ── Apertura concurrente ──────────────────────────────────────────────────────

func TestAperturaConcurrenteUnaSolaGana(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewCajaRepository(db)
	svc := service.NewCajaService(repo, nil, dec("50"))
	cajero := service.Actor{ID: uuid.New(), Rol: model.RolCajero}

	const intentos = 20
	var wg sync.WaitGroup
	errs := make([]error, intentos)
	for i := 0; i < intentos; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Abrir(context.Background(), cajero, dto.AbrirCajaRequest{
				Turno:        "manana",
				MontoInicial: dec("500"),
			})
		}(i)
	}
	wg.Wait()

	exitos := 0
	for _, err := range errs {
		if err == nil {
			exitos++
			continue
		}
		var apiErr *apierror.Error
		require.True(t, errors.As(err, &apiErr), "error inesperado: %v", err)
		assert.Equal(t, apierror.KindConflict, apiErr.Kind)
	}
	assert.Equal(t, 1, exitos, "exactamente una apertura debe sobrevivir")

	var abiertas int64
	require.NoError(t, db.Model(&model.SesionCaja{}).
		Where("cajero_id = ? AND estado IN ('abierta', 'arqueo')", cajero.ID).
		Count(&abiertas).Error)
	assert.Equal(t, int64(1), abiertas)
}

// ── Folios concurrentes ───────────────────────────────────────────────────────

func TestFoliosConcurrentesSinHuecos(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewReciboRepository(db)
	require.NoError(t, repo.EnsureSerie(context.Background(), "A"))

	const emisiones = 100
	var wg sync.WaitGroup
	folios := make(chan int64, emisiones)
	errs := make([]error, emisiones)
	for i := 0; i < emisiones; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.Transaction(func(tx *gorm.DB) error {
				folio, err := repo.NextFolioTx(tx, "A")
				if err != nil {
					return err
				}
				folios <- folio
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(folios)
	for i, err := range errs {
		require.NoError(t, err, "emisión %d", i)
	}

	asignados := make([]int64, 0, emisiones)
	for f := range folios {
		asignados = append(asignados, f)
	}
	sort.Slice(asignados, func(i, j int) bool { return asignados[i] < asignados[j] })

	require.Len(t, asignados, emisiones)
	for i, f := range asignados {
		assert.Equal(t, int64(i+1), f, "folio duplicado o con hueco en la posición %d", i)
	}
}

func TestFolioSeLiberaAlAbortar(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewReciboRepository(db)
	require.NoError(t, repo.EnsureSerie(context.Background(), "A"))

	var tomado int64
	abortada := errors.New("emisión abortada")
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		tomado, err = repo.NextFolioTx(tx, "A")
		require.NoError(t, err)
		return abortada
	})
	require.ErrorIs(t, err, abortada)
	require.Equal(t, int64(1), tomado)

	// el rollback devuelve el folio: la siguiente emisión lo reutiliza
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		folio, err := repo.NextFolioTx(tx, "A")
		if err != nil {
			return err
		}
		assert.Equal(t, tomado, folio)
		return nil
	}))
}
