package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hospicaja/internal/apierror"
	"hospicaja/internal/dto"
	"hospicaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── In-memory fake ────────────────────────────────────────────────────────────

type fakeCajaRepo struct {
	sesiones    map[uuid.UUID]*model.SesionCaja
	movimientos []model.MovimientoCaja
	nextNumero  int64
}

func newFakeCajaRepo() *fakeCajaRepo {
	return &fakeCajaRepo{sesiones: make(map[uuid.UUID]*model.SesionCaja)}
}

func (f *fakeCajaRepo) DB() *gorm.DB { return nil }

func (f *fakeCajaRepo) CreateSesionTx(_ *gorm.DB, s *model.SesionCaja) error {
	for _, ex := range f.sesiones {
		if ex.CajeroID == s.CajeroID && ex.Estado != "cerrada" {
			return gorm.ErrDuplicatedKey
		}
	}
	s.ID = uuid.New()
	f.nextNumero++
	s.NumeroSesion = f.nextNumero
	f.sesiones[s.ID] = s
	return nil
}

func (f *fakeCajaRepo) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	s, ok := f.sesiones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	cp.Movimientos = nil
	for _, m := range f.movimientos {
		if m.SesionCajaID == id {
			cp.Movimientos = append(cp.Movimientos, m)
		}
	}
	return &cp, nil
}

func (f *fakeCajaRepo) FindSesionByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	s, ok := f.sesiones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (f *fakeCajaRepo) FindSesionAbiertaPorCajero(_ context.Context, cajeroID uuid.UUID) (*model.SesionCaja, error) {
	for _, s := range f.sesiones {
		if s.CajeroID == cajeroID && s.Estado != "cerrada" {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCajaRepo) UpdateSesionTx(_ *gorm.DB, s *model.SesionCaja) error {
	f.sesiones[s.ID] = s
	return nil
}

func (f *fakeCajaRepo) CreateMovimientoTx(_ *gorm.DB, m *model.MovimientoCaja) error {
	m.ID = uuid.New()
	f.movimientos = append(f.movimientos, *m)
	return nil
}

func (f *fakeCajaRepo) ListMovimientos(_ context.Context, sesionID uuid.UUID) ([]model.MovimientoCaja, error) {
	var out []model.MovimientoCaja
	for _, m := range f.movimientos {
		if m.SesionCajaID == sesionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeCajaRepo) SumMovimientosTx(_ *gorm.DB, sesionID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i := range f.movimientos {
		if f.movimientos[i].SesionCajaID == sesionID {
			sum = sum.Add(f.movimientos[i].Efecto())
		}
	}
	return sum, nil
}

func (f *fakeCajaRepo) ListSesiones(_ context.Context, _, _ int) ([]model.SesionCaja, int64, error) {
	var out []model.SesionCaja
	for _, s := range f.sesiones {
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

func (f *fakeCajaRepo) ListSesionesEntre(_ context.Context, desde, hasta time.Time) ([]model.SesionCaja, error) {
	var out []model.SesionCaja
	for id, s := range f.sesiones {
		if s.OpenedAt.Before(desde) || !s.OpenedAt.Before(hasta) {
			continue
		}
		cp := *s
		cp.Movimientos = nil
		for _, m := range f.movimientos {
			if m.SesionCajaID == id {
				cp.Movimientos = append(cp.Movimientos, m)
			}
		}
		out = append(out, cp)
	}
	return out, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func assertKind(t *testing.T, err error, kind apierror.Kind) {
	t.Helper()
	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr), "expected *apierror.Error, got %v", err)
	assert.Equal(t, kind, apiErr.Kind)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func abrirSesion(t *testing.T, svc CajaService, actor Actor, inicial string) uuid.UUID {
	t.Helper()
	rep, err := svc.Abrir(context.Background(), actor, dto.AbrirCajaRequest{
		Turno:        "manana",
		MontoInicial: dec(inicial),
	})
	require.NoError(t, err)
	id, err := uuid.Parse(rep.SesionCajaID)
	require.NoError(t, err)
	return id
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestAbrirRegistraFondoApertura(t *testing.T) {
	repo := newFakeCajaRepo()
	svc := NewCajaService(repo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}

	id := abrirSesion(t, svc, cajero, "500.00")

	rep, err := svc.ObtenerReporte(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "abierta", rep.Estado)
	require.Len(t, rep.Movimientos, 1)
	assert.Equal(t, model.MovFondoApertura, rep.Movimientos[0].Tipo)
	assert.True(t, rep.MontoEsperado.Equal(dec("500.00")))
}

func TestAbrirSegundaSesionConflicto(t *testing.T) {
	repo := newFakeCajaRepo()
	svc := NewCajaService(repo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}

	abrirSesion(t, svc, cajero, "100")

	_, err := svc.Abrir(context.Background(), cajero, dto.AbrirCajaRequest{Turno: "tarde", MontoInicial: dec("100")})
	assertKind(t, err, apierror.KindConflict)
}

func TestEgresoNoPuedeExcederEfectivo(t *testing.T) {
	repo := newFakeCajaRepo()
	svc := NewCajaService(repo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	id := abrirSesion(t, svc, cajero, "100")

	err := svc.RegistrarMovimiento(context.Background(), cajero, dto.MovimientoCajaRequest{
		SesionCajaID: id.String(),
		Tipo:         model.MovEgreso,
		Monto:        dec("250"),
		Concepto:     "compra de insumos",
	})
	assertKind(t, err, apierror.KindValidation)
}

func TestArqueoCalculaDesvio(t *testing.T) {
	repo := newFakeCajaRepo()
	svc := NewCajaService(repo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	id := abrirSesion(t, svc, cajero, "500")

	err := svc.RegistrarMovimiento(context.Background(), cajero, dto.MovimientoCajaRequest{
		SesionCajaID: id.String(),
		Tipo:         model.MovIngreso,
		Monto:        dec("200"),
		Concepto:     "cobro en ventanilla",
	})
	require.NoError(t, err)

	resp, err := svc.Arqueo(context.Background(), cajero, dto.ArqueoRequest{
		SesionCajaID:   id.String(),
		MontoDeclarado: dec("690"),
	})
	require.NoError(t, err)
	assert.True(t, resp.MontoEsperado.Equal(dec("700")))
	assert.True(t, resp.Desvio.Equal(dec("-10")))
	assert.Equal(t, "arqueo", resp.Estado)
}

func TestArqueoSePuedeRedeclarar(t *testing.T) {
	repo := newFakeCajaRepo()
	svc := NewCajaService(repo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	id := abrirSesion(t, svc, cajero, "300")

	_, err := svc.Arqueo(context.Background(), cajero, dto.ArqueoRequest{SesionCajaID: id.String(), MontoDeclarado: dec("280")})
	require.NoError(t, err)

	resp, err := svc.Arqueo(context.Background(), cajero, dto.ArqueoRequest{SesionCajaID: id.String(), MontoDeclarado: dec("300")})
	require.NoError(t, err)
	assert.True(t, resp.Desvio.IsZero())
}

func TestCerrarSinDeclaracionFalla(t *testing.T) {
	repo := newFakeCajaRepo()
	svc := NewCajaService(repo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	id := abrirSesion(t, svc, cajero, "100")

	_, err := svc.Cerrar(context.Background(), cajero, dto.CerrarCajaRequest{SesionCajaID: id.String()})
	assertKind(t, err, apierror.KindPrecondition)
}

func TestCerrarConDeclaracionInline(t *testing.T) {
	repo := newFakeCajaRepo()
	svc := NewCajaService(repo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	id := abrirSesion(t, svc, cajero, "100")

	declarado := dec("100")
	rep, err := svc.Cerrar(context.Background(), cajero, dto.CerrarCajaRequest{
		SesionCajaID:   id.String(),
		MontoDeclarado: &declarado,
	})
	require.NoError(t, err)
	assert.Equal(t, "cerrada", rep.Estado)
	require.NotNil(t, rep.Desvio)
	assert.True(t, rep.Desvio.IsZero())
}

func TestCerrarDesvioFueraDeUmbral(t *testing.T) {
	repo := newFakeCajaRepo()
	svc := NewCajaService(repo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	supervisor := Actor{ID: uuid.New(), Rol: model.RolSupervisor}
	id := abrirSesion(t, svc, cajero, "500")

	declarado := dec("400") // desvío -100, umbral 50

	// sin justificación
	_, err := svc.Cerrar(context.Background(), supervisor, dto.CerrarCajaRequest{
		SesionCajaID: id.String(), MontoDeclarado: &declarado,
	})
	assertKind(t, err, apierror.KindAuthorization)

	// justificación presente pero el actor es cajero
	just := "faltante reportado a seguridad"
	_, err = svc.Cerrar(context.Background(), cajero, dto.CerrarCajaRequest{
		SesionCajaID: id.String(), MontoDeclarado: &declarado, Justificacion: &just,
	})
	assertKind(t, err, apierror.KindAuthorization)

	// supervisor con justificación
	rep, err := svc.Cerrar(context.Background(), supervisor, dto.CerrarCajaRequest{
		SesionCajaID: id.String(), MontoDeclarado: &declarado, Justificacion: &just,
	})
	require.NoError(t, err)
	assert.Equal(t, "cerrada", rep.Estado)
	require.NotNil(t, rep.Justificacion)

	sesion := repo.sesiones[id]
	require.NotNil(t, sesion.AutorizadorID)
	assert.Equal(t, supervisor.ID, *sesion.AutorizadorID)
}

func TestCerrarDosVecesEsEstadoInvalido(t *testing.T) {
	repo := newFakeCajaRepo()
	svc := NewCajaService(repo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	id := abrirSesion(t, svc, cajero, "100")

	declarado := dec("100")
	_, err := svc.Cerrar(context.Background(), cajero, dto.CerrarCajaRequest{
		SesionCajaID: id.String(), MontoDeclarado: &declarado,
	})
	require.NoError(t, err)

	_, err = svc.Cerrar(context.Background(), cajero, dto.CerrarCajaRequest{
		SesionCajaID: id.String(), MontoDeclarado: &declarado,
	})
	assertKind(t, err, apierror.KindInvalidState)
}
