package service

import (
	"context"
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

type fakeReciboRepo struct {
	recibos map[uuid.UUID]*model.Recibo
	folios  map[string]int64
}

func newFakeReciboRepo() *fakeReciboRepo {
	return &fakeReciboRepo{
		recibos: make(map[uuid.UUID]*model.Recibo),
		folios:  map[string]int64{"A": 0},
	}
}

func (f *fakeReciboRepo) DB() *gorm.DB { return nil }

func (f *fakeReciboRepo) CreateTx(_ *gorm.DB, rec *model.Recibo) error {
	rec.ID = uuid.New()
	f.recibos[rec.ID] = rec
	return nil
}

func (f *fakeReciboRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Recibo, error) {
	rec, ok := f.recibos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeReciboRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.Recibo, error) {
	rec, ok := f.recibos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeReciboRepo) UpdateTx(_ *gorm.DB, rec *model.Recibo) error {
	f.recibos[rec.ID] = rec
	return nil
}

func (f *fakeReciboRepo) Update(_ context.Context, rec *model.Recibo) error {
	f.recibos[rec.ID] = rec
	return nil
}

func (f *fakeReciboRepo) List(_ context.Context, serie string, _, _ int) ([]model.Recibo, int64, error) {
	var out []model.Recibo
	for _, rec := range f.recibos {
		if serie == "" || rec.Serie == serie {
			out = append(out, *rec)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeReciboRepo) NextFolioTx(_ *gorm.DB, serie string) (int64, error) {
	if _, ok := f.folios[serie]; !ok {
		return 0, gorm.ErrRecordNotFound
	}
	f.folios[serie]++
	return f.folios[serie], nil
}

func (f *fakeReciboRepo) EnsureSerie(_ context.Context, serie string) error {
	if _, ok := f.folios[serie]; !ok {
		f.folios[serie] = 0
	}
	return nil
}

func (f *fakeReciboRepo) ListPendingRetries(_ context.Context, _ time.Time, _ int) ([]model.Recibo, error) {
	return nil, nil
}

func (f *fakeReciboRepo) TotalEmitidoEntre(_ context.Context, desde, hasta time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, rec := range f.recibos {
		if rec.Estado != "cancelado" && !rec.EmitidoAt.Before(desde) && rec.EmitidoAt.Before(hasta) {
			sum = sum.Add(rec.Total)
		}
	}
	return sum, nil
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

type reciboFixture struct {
	svc        ReciboService
	cajaSvc    CajaService
	cajaRepo   *fakeCajaRepo
	repo       *fakeReciboRepo
	cuentaRepo *fakeCuentaRepo
	cajero     Actor
	sesionID   uuid.UUID
}

func newReciboFixture(t *testing.T) *reciboFixture {
	t.Helper()
	cajaRepo := newFakeCajaRepo()
	cajaSvc := NewCajaService(cajaRepo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	sesionID := abrirSesion(t, cajaSvc, cajero, "500")

	repo := newFakeReciboRepo()
	cuentaRepo := newFakeCuentaRepo()
	return &reciboFixture{
		svc:        NewReciboService(repo, cuentaRepo, cajaRepo, nil, "A"),
		cajaSvc:    cajaSvc,
		cajaRepo:   cajaRepo,
		repo:       repo,
		cuentaRepo: cuentaRepo,
		cajero:     cajero,
		sesionID:   sesionID,
	}
}

func (fx *reciboFixture) pagar(t *testing.T, cuenta *model.CuentaPaciente, tipo, recibido string) *dto.ReciboResponse {
	t.Helper()
	resp, err := fx.svc.PagarCuenta(context.Background(), fx.cajero, dto.PagarCuentaRequest{
		CuentaID:      cuenta.ID.String(),
		SesionCajaID:  fx.sesionID.String(),
		Tipo:          tipo,
		MontoRecibido: dec(recibido),
		MetodoPago:    "efectivo",
	})
	require.NoError(t, err)
	return resp
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestEmitirAsignaFoliosConsecutivos(t *testing.T) {
	fx := newReciboFixture(t)

	r1 := fx.pagar(t, fx.cuentaRepo.agregar("100"), model.ReciboPagoCuenta, "100")
	r2 := fx.pagar(t, fx.cuentaRepo.agregar("250"), model.ReciboPagoCuenta, "250")
	r3 := fx.pagar(t, fx.cuentaRepo.agregar("0"), model.ReciboAnticipo, "50")

	assert.Equal(t, int64(1), r1.Folio)
	assert.Equal(t, int64(2), r2.Folio)
	assert.Equal(t, int64(3), r3.Folio)
	assert.Equal(t, "A", r1.Serie)
}

func TestPagoCuentaConCambio(t *testing.T) {
	fx := newReciboFixture(t)
	cuenta := fx.cuentaRepo.agregar("300")

	resp := fx.pagar(t, cuenta, model.ReciboPagoCuenta, "350")

	assert.True(t, resp.Total.Equal(dec("300")))
	assert.True(t, resp.Cambio.Equal(dec("50")))
	assert.Equal(t, "emitido", resp.Estado)
	assert.True(t, cuenta.SaldoPendiente.IsZero())

	// a caja solo entra el neto, el cambio se devuelve en ventanilla
	rep, err := fx.cajaSvc.ObtenerReporte(context.Background(), fx.sesionID)
	require.NoError(t, err)
	assert.True(t, rep.MontoEsperado.Equal(dec("800")))
}

func TestPagoCuentaMontoInsuficiente(t *testing.T) {
	fx := newReciboFixture(t)
	cuenta := fx.cuentaRepo.agregar("300")

	_, err := fx.svc.PagarCuenta(context.Background(), fx.cajero, dto.PagarCuentaRequest{
		CuentaID:      cuenta.ID.String(),
		SesionCajaID:  fx.sesionID.String(),
		Tipo:          model.ReciboPagoCuenta,
		MontoRecibido: dec("250"),
		MetodoPago:    "efectivo",
	})
	assertKind(t, err, apierror.KindValidation)
}

func TestPagoParcialNoExcedeSaldo(t *testing.T) {
	fx := newReciboFixture(t)
	cuenta := fx.cuentaRepo.agregar("100")

	_, err := fx.svc.PagarCuenta(context.Background(), fx.cajero, dto.PagarCuentaRequest{
		CuentaID:      cuenta.ID.String(),
		SesionCajaID:  fx.sesionID.String(),
		Tipo:          model.ReciboPagoParcial,
		MontoRecibido: dec("150"),
		MetodoPago:    "efectivo",
	})
	assertKind(t, err, apierror.KindValidation)

	resp := fx.pagar(t, cuenta, model.ReciboPagoParcial, "40")
	assert.True(t, resp.Total.Equal(dec("40")))
	assert.True(t, resp.Cambio.IsZero())
	assert.True(t, cuenta.SaldoPendiente.Equal(dec("60")))
}

func TestAnticipoDejaSaldoAFavor(t *testing.T) {
	fx := newReciboFixture(t)
	cuenta := fx.cuentaRepo.agregar("0")

	resp := fx.pagar(t, cuenta, model.ReciboAnticipo, "200")

	assert.True(t, resp.Total.Equal(dec("200")))
	assert.True(t, cuenta.SaldoPendiente.Equal(dec("-200")))
}

func TestPagoSinSaldoPendiente(t *testing.T) {
	fx := newReciboFixture(t)
	cuenta := fx.cuentaRepo.agregar("0")

	_, err := fx.svc.PagarCuenta(context.Background(), fx.cajero, dto.PagarCuentaRequest{
		CuentaID:      cuenta.ID.String(),
		SesionCajaID:  fx.sesionID.String(),
		Tipo:          model.ReciboPagoCuenta,
		MontoRecibido: dec("100"),
		MetodoPago:    "efectivo",
	})
	assertKind(t, err, apierror.KindPrecondition)
}

func TestSerieSinSembrarNoEmite(t *testing.T) {
	fx := newReciboFixture(t)
	cuenta := fx.cuentaRepo.agregar("100")
	svc := NewReciboService(fx.repo, fx.cuentaRepo, fx.cajaRepo, nil, "B")

	_, err := svc.PagarCuenta(context.Background(), fx.cajero, dto.PagarCuentaRequest{
		CuentaID:      cuenta.ID.String(),
		SesionCajaID:  fx.sesionID.String(),
		Tipo:          model.ReciboPagoCuenta,
		MontoRecibido: dec("100"),
		MetodoPago:    "efectivo",
	})
	assertKind(t, err, apierror.KindNotFound)
}

func TestCancelarRequiereSupervision(t *testing.T) {
	fx := newReciboFixture(t)
	resp := fx.pagar(t, fx.cuentaRepo.agregar("100"), model.ReciboPagoCuenta, "100")
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	_, err = fx.svc.Cancelar(context.Background(), fx.cajero, id, "cobro duplicado al paciente")
	assertKind(t, err, apierror.KindForbidden)

	supervisor := Actor{ID: uuid.New(), Rol: model.RolSupervisor}
	cancelado, err := fx.svc.Cancelar(context.Background(), supervisor, id, "cobro duplicado al paciente")
	require.NoError(t, err)
	assert.Equal(t, "cancelado", cancelado.Estado)
	require.NotNil(t, cancelado.MotivoCancelacion)

	_, err = fx.svc.Cancelar(context.Background(), supervisor, id, "otra vez")
	assertKind(t, err, apierror.KindInvalidState)
}

func TestCancelarExcluyeDelTotalEmitido(t *testing.T) {
	fx := newReciboFixture(t)
	fx.pagar(t, fx.cuentaRepo.agregar("100"), model.ReciboPagoCuenta, "100")
	resp := fx.pagar(t, fx.cuentaRepo.agregar("300"), model.ReciboPagoCuenta, "300")
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	supervisor := Actor{ID: uuid.New(), Rol: model.RolSupervisor}
	_, err = fx.svc.Cancelar(context.Background(), supervisor, id, "monto cobrado de más")
	require.NoError(t, err)

	total, err := fx.repo.TotalEmitidoEntre(context.Background(),
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("100")))

	// el folio del cancelado sigue ocupado, no se reutiliza
	siguiente := fx.pagar(t, fx.cuentaRepo.agregar("50"), model.ReciboPagoCuenta, "50")
	assert.Equal(t, int64(3), siguiente.Folio)
}

func TestReimprimirRepetible(t *testing.T) {
	fx := newReciboFixture(t)
	resp := fx.pagar(t, fx.cuentaRepo.agregar("100"), model.ReciboPagoCuenta, "100")
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	re, err := fx.svc.Reimprimir(context.Background(), fx.cajero, id)
	require.NoError(t, err)
	assert.Equal(t, "reimpreso", re.Estado)

	re, err = fx.svc.Reimprimir(context.Background(), fx.cajero, id)
	require.NoError(t, err)
	assert.Equal(t, "reimpreso", re.Estado)
}

func TestReimprimirCanceladoProhibido(t *testing.T) {
	fx := newReciboFixture(t)
	resp := fx.pagar(t, fx.cuentaRepo.agregar("100"), model.ReciboPagoCuenta, "100")
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	supervisor := Actor{ID: uuid.New(), Rol: model.RolSupervisor}
	_, err = fx.svc.Cancelar(context.Background(), supervisor, id, "emitido por error")
	require.NoError(t, err)

	_, err = fx.svc.Reimprimir(context.Background(), fx.cajero, id)
	assertKind(t, err, apierror.KindInvalidState)
}
