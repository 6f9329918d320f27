package service

import (
	"context"
	"errors"
	"testing"

	"hospicaja/internal/apierror"
	"hospicaja/internal/dto"
	"hospicaja/internal/infra"
	"hospicaja/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── In-memory fakes ───────────────────────────────────────────────────────────

type fakeDevolucionRepo struct {
	devoluciones map[uuid.UUID]*model.Devolucion
	motivos      map[uuid.UUID]*model.MotivoDevolucion
	nextNumero   int64
}

func newFakeDevolucionRepo() *fakeDevolucionRepo {
	return &fakeDevolucionRepo{
		devoluciones: make(map[uuid.UUID]*model.Devolucion),
		motivos:      make(map[uuid.UUID]*model.MotivoDevolucion),
	}
}

func (f *fakeDevolucionRepo) DB() *gorm.DB { return nil }

func (f *fakeDevolucionRepo) CreateTx(_ *gorm.DB, d *model.Devolucion) error {
	d.ID = uuid.New()
	f.nextNumero++
	d.Numero = f.nextNumero
	for i := range d.Items {
		d.Items[i].ID = uuid.New()
		d.Items[i].DevolucionID = d.ID
	}
	f.devoluciones[d.ID] = d
	return nil
}

func (f *fakeDevolucionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Devolucion, error) {
	d, ok := f.devoluciones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (f *fakeDevolucionRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.Devolucion, error) {
	d, ok := f.devoluciones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (f *fakeDevolucionRepo) ListItemsTx(_ *gorm.DB, devolucionID uuid.UUID) ([]model.DevolucionItem, error) {
	d, ok := f.devoluciones[devolucionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d.Items, nil
}

func (f *fakeDevolucionRepo) UpdateTx(_ *gorm.DB, d *model.Devolucion) error {
	f.devoluciones[d.ID] = d
	return nil
}

func (f *fakeDevolucionRepo) List(_ context.Context, estado string, _, _ int) ([]model.Devolucion, int64, error) {
	var out []model.Devolucion
	for _, d := range f.devoluciones {
		if estado == "" || estado == "all" || d.Estado == estado {
			out = append(out, *d)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeDevolucionRepo) FindMotivoByID(_ context.Context, id uuid.UUID) (*model.MotivoDevolucion, error) {
	m, ok := f.motivos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (f *fakeDevolucionRepo) CreateMotivo(_ context.Context, m *model.MotivoDevolucion) error {
	for _, ex := range f.motivos {
		if ex.Codigo == m.Codigo {
			return gorm.ErrDuplicatedKey
		}
	}
	m.ID = uuid.New()
	f.motivos[m.ID] = m
	return nil
}

func (f *fakeDevolucionRepo) ListMotivos(_ context.Context) ([]model.MotivoDevolucion, error) {
	var out []model.MotivoDevolucion
	for _, m := range f.motivos {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeDevolucionRepo) sembrarMotivo(codigo string, requiereAutorizacion bool) *model.MotivoDevolucion {
	m := &model.MotivoDevolucion{
		ID:                   uuid.New(),
		Codigo:               codigo,
		Categoria:            "operativo",
		Descripcion:          "motivo de prueba " + codigo,
		RequiereAutorizacion: requiereAutorizacion,
		Activo:               true,
	}
	f.motivos[m.ID] = m
	return m
}

type fakeRestockClient struct {
	llamadas []infra.RestockPayload
	fallar   bool
}

func (f *fakeRestockClient) Restock(_ context.Context, p infra.RestockPayload) (*infra.RestockResponse, error) {
	if f.fallar {
		return nil, errors.New("inventario: connection refused")
	}
	f.llamadas = append(f.llamadas, p)
	return &infra.RestockResponse{}, nil
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

type devolucionFixture struct {
	svc        DevolucionService
	cajaSvc    CajaService
	repo       *fakeDevolucionRepo
	cuentaRepo *fakeCuentaRepo
	reciboRepo *fakeReciboRepo
	restock    *fakeRestockClient
	cajero     Actor
	supervisor Actor
	sesionID   uuid.UUID
}

func newDevolucionFixture(t *testing.T, inicial string) *devolucionFixture {
	t.Helper()
	cajaRepo := newFakeCajaRepo()
	cajaSvc := NewCajaService(cajaRepo, nil, dec("50"))
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	sesionID := abrirSesion(t, cajaSvc, cajero, inicial)

	repo := newFakeDevolucionRepo()
	cuentaRepo := newFakeCuentaRepo()
	reciboRepo := newFakeReciboRepo()
	restock := &fakeRestockClient{}
	recibos := NewReciboService(reciboRepo, cuentaRepo, cajaRepo, nil, "A")

	return &devolucionFixture{
		svc:        NewDevolucionService(repo, cuentaRepo, cajaRepo, recibos, restock, nil, nil),
		cajaSvc:    cajaSvc,
		repo:       repo,
		cuentaRepo: cuentaRepo,
		reciboRepo: reciboRepo,
		restock:    restock,
		cajero:     cajero,
		supervisor: Actor{ID: uuid.New(), Rol: model.RolSupervisor},
		sesionID:   sesionID,
	}
}

func itemBueno(precio string, cantidad int) dto.DevolucionItemRequest {
	pid := uuid.NewString()
	return dto.DevolucionItemRequest{
		ProductoID:        &pid,
		Descripcion:       "suero fisiológico 500ml",
		CantidadOriginal:  cantidad,
		CantidadDevuelta:  cantidad,
		PrecioUnitario:    dec(precio),
		CondicionFisica:   model.CondicionBuena,
		RegresaInventario: true,
	}
}

func (fx *devolucionFixture) crearAutorizada(t *testing.T, items ...dto.DevolucionItemRequest) uuid.UUID {
	t.Helper()
	motivo := fx.repo.sembrarMotivo("error_cobro", false)
	cuenta := fx.cuentaRepo.agregar("0")

	tipo := model.DevProducto
	if len(items) == 0 {
		tipo = model.DevServicio
		monto := dec("100")
		resp, err := fx.svc.Crear(context.Background(), fx.cajero, dto.CrearDevolucionRequest{
			CuentaID:       cuenta.ID.String(),
			Tipo:           tipo,
			MotivoID:       motivo.ID.String(),
			MontoReembolso: &monto,
			MetodoPago:     "efectivo",
		})
		require.NoError(t, err)
		id, err := uuid.Parse(resp.ID)
		require.NoError(t, err)
		return id
	}

	resp, err := fx.svc.Crear(context.Background(), fx.cajero, dto.CrearDevolucionRequest{
		CuentaID:   cuenta.ID.String(),
		Tipo:       tipo,
		MotivoID:   motivo.ID.String(),
		MetodoPago: "efectivo",
		Items:      items,
	})
	require.NoError(t, err)
	require.Equal(t, "autorizada", resp.Estado)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestCrearNoDevuelveMasDeLoOriginal(t *testing.T) {
	fx := newDevolucionFixture(t, "500")
	motivo := fx.repo.sembrarMotivo("producto_defectuoso", true)
	cuenta := fx.cuentaRepo.agregar("0")

	item := itemBueno("50", 2)
	item.CantidadDevuelta = 3

	_, err := fx.svc.Crear(context.Background(), fx.cajero, dto.CrearDevolucionRequest{
		CuentaID:   cuenta.ID.String(),
		Tipo:       model.DevProducto,
		MotivoID:   motivo.ID.String(),
		MetodoPago: "efectivo",
		Items:      []dto.DevolucionItemRequest{item},
	})
	assertKind(t, err, apierror.KindValidation)
}

func TestCrearProductoSinItems(t *testing.T) {
	fx := newDevolucionFixture(t, "500")
	motivo := fx.repo.sembrarMotivo("producto_defectuoso", true)
	cuenta := fx.cuentaRepo.agregar("0")

	_, err := fx.svc.Crear(context.Background(), fx.cajero, dto.CrearDevolucionRequest{
		CuentaID:   cuenta.ID.String(),
		Tipo:       model.DevProducto,
		MotivoID:   motivo.ID.String(),
		MetodoPago: "efectivo",
	})
	assertKind(t, err, apierror.KindValidation)
}

func TestCrearMotivoInactivo(t *testing.T) {
	fx := newDevolucionFixture(t, "500")
	motivo := fx.repo.sembrarMotivo("alta_anticipada", true)
	motivo.Activo = false
	cuenta := fx.cuentaRepo.agregar("0")

	_, err := fx.svc.Crear(context.Background(), fx.cajero, dto.CrearDevolucionRequest{
		CuentaID:   cuenta.ID.String(),
		Tipo:       model.DevProducto,
		MotivoID:   motivo.ID.String(),
		MetodoPago: "efectivo",
		Items:      []dto.DevolucionItemRequest{itemBueno("50", 1)},
	})
	assertKind(t, err, apierror.KindPrecondition)
}

func TestMotivoSinAutorizacionSaltaLaCola(t *testing.T) {
	fx := newDevolucionFixture(t, "500")
	id := fx.crearAutorizada(t, itemBueno("80", 1))

	dev := fx.repo.devoluciones[id]
	assert.Equal(t, "autorizada", dev.Estado)
	assert.Nil(t, dev.AprobadorID)
}

func TestSolicitanteNoResuelveSuPropiaDevolucion(t *testing.T) {
	fx := newDevolucionFixture(t, "500")
	motivo := fx.repo.sembrarMotivo("servicio_no_prestado", true)
	cuenta := fx.cuentaRepo.agregar("0")

	solicitante := Actor{ID: uuid.New(), Rol: model.RolSupervisor}
	resp, err := fx.svc.Crear(context.Background(), solicitante, dto.CrearDevolucionRequest{
		CuentaID:   cuenta.ID.String(),
		Tipo:       model.DevProducto,
		MotivoID:   motivo.ID.String(),
		MetodoPago: "efectivo",
		Items:      []dto.DevolucionItemRequest{itemBueno("200", 1)},
	})
	require.NoError(t, err)
	require.Equal(t, "pendiente_autorizacion", resp.Estado)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	// un cajero no resuelve
	_, err = fx.svc.Autorizar(context.Background(), fx.cajero, id)
	assertKind(t, err, apierror.KindForbidden)

	// el solicitante tampoco, aunque tenga el rol
	_, err = fx.svc.Autorizar(context.Background(), solicitante, id)
	assertKind(t, err, apierror.KindAuthorization)

	aprobada, err := fx.svc.Autorizar(context.Background(), fx.supervisor, id)
	require.NoError(t, err)
	assert.Equal(t, "autorizada", aprobada.Estado)
	require.NotNil(t, aprobada.AprobadorID)
	assert.Equal(t, fx.supervisor.ID.String(), *aprobada.AprobadorID)
}

func TestProcesarEmiteReembolsoYEgreso(t *testing.T) {
	fx := newDevolucionFixture(t, "500")

	danado := itemBueno("30", 1)
	danado.CondicionFisica = model.CondicionDanado
	id := fx.crearAutorizada(t, itemBueno("45", 2), danado)

	resp, err := fx.svc.Procesar(context.Background(), fx.cajero, id, dto.ProcesarDevolucionRequest{
		SesionCajaID: fx.sesionID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "procesada", resp.Estado)
	require.NotNil(t, resp.ProcesadorID)
	assert.Equal(t, fx.cajero.ID.String(), *resp.ProcesadorID)

	// el reembolso sale de caja: 500 - (45*2 + 30)
	rep, err := fx.cajaSvc.ObtenerReporte(context.Background(), fx.sesionID)
	require.NoError(t, err)
	assert.True(t, rep.MontoEsperado.Equal(dec("380")))

	// recibo de reembolso ligado a la devolución
	require.Len(t, fx.reciboRepo.recibos, 1)
	for _, rec := range fx.reciboRepo.recibos {
		assert.Equal(t, model.ReciboReembolso, rec.Tipo)
		assert.Equal(t, int64(1), rec.Folio)
		require.NotNil(t, rec.EventoOrigenID)
		assert.Equal(t, id, *rec.EventoOrigenID)
		assert.True(t, rec.Total.Equal(dec("120")))
	}

	// solo el item en buen estado regresa a inventario
	require.Len(t, fx.restock.llamadas, 1)
	require.Len(t, fx.restock.llamadas[0].Items, 1)
	assert.Equal(t, 2, fx.restock.llamadas[0].Items[0].Cantidad)
}

func TestProcesarExcedeEfectivoEnCaja(t *testing.T) {
	fx := newDevolucionFixture(t, "100")
	id := fx.crearAutorizada(t, itemBueno("90", 2))

	_, err := fx.svc.Procesar(context.Background(), fx.cajero, id, dto.ProcesarDevolucionRequest{
		SesionCajaID: fx.sesionID.String(),
	})
	assertKind(t, err, apierror.KindPrecondition)
}

func TestProcesarPendienteEsEstadoInvalido(t *testing.T) {
	fx := newDevolucionFixture(t, "500")
	motivo := fx.repo.sembrarMotivo("servicio_no_prestado", true)
	cuenta := fx.cuentaRepo.agregar("0")

	resp, err := fx.svc.Crear(context.Background(), fx.cajero, dto.CrearDevolucionRequest{
		CuentaID:   cuenta.ID.String(),
		Tipo:       model.DevProducto,
		MotivoID:   motivo.ID.String(),
		MetodoPago: "efectivo",
		Items:      []dto.DevolucionItemRequest{itemBueno("50", 1)},
	})
	require.NoError(t, err)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	_, err = fx.svc.Procesar(context.Background(), fx.cajero, id, dto.ProcesarDevolucionRequest{
		SesionCajaID: fx.sesionID.String(),
	})
	assertKind(t, err, apierror.KindInvalidState)
}

func TestProcesarAjustaElSaldoDeLaCuenta(t *testing.T) {
	fx := newDevolucionFixture(t, "500")
	motivo := fx.repo.sembrarMotivo("error_cobro", false)
	cuenta := fx.cuentaRepo.agregar("300")

	resp, err := fx.svc.Crear(context.Background(), fx.cajero, dto.CrearDevolucionRequest{
		CuentaID:   cuenta.ID.String(),
		Tipo:       model.DevProducto,
		MotivoID:   motivo.ID.String(),
		MetodoPago: "efectivo",
		Items:      []dto.DevolucionItemRequest{itemBueno("150", 2)},
	})
	require.NoError(t, err)
	require.Equal(t, "autorizada", resp.Estado)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	_, err = fx.svc.Procesar(context.Background(), fx.cajero, id, dto.ProcesarDevolucionRequest{
		SesionCajaID: fx.sesionID.String(),
	})
	require.NoError(t, err)

	// el reembolso revierte el cargo: saldo 300 - 300, caja 500 - 300
	assert.True(t, cuenta.SaldoPendiente.IsZero(), "saldo esperado 0, obtuve %s", cuenta.SaldoPendiente)
	rep, err := fx.cajaSvc.ObtenerReporte(context.Background(), fx.sesionID)
	require.NoError(t, err)
	assert.True(t, rep.MontoEsperado.Equal(dec("200")))
}

func TestRestockCaidoAbortaElProcesamiento(t *testing.T) {
	fx := newDevolucionFixture(t, "500")
	fx.restock.fallar = true
	id := fx.crearAutorizada(t, itemBueno("60", 1))

	_, err := fx.svc.Procesar(context.Background(), fx.cajero, id, dto.ProcesarDevolucionRequest{
		SesionCajaID: fx.sesionID.String(),
	})
	assertKind(t, err, apierror.KindRetryable)

	// nada se movió: la devolución sigue autorizada, la caja intacta, sin recibo
	assert.Equal(t, "autorizada", fx.repo.devoluciones[id].Estado)
	assert.Empty(t, fx.reciboRepo.recibos)
	rep, err := fx.cajaSvc.ObtenerReporte(context.Background(), fx.sesionID)
	require.NoError(t, err)
	assert.True(t, rep.MontoEsperado.Equal(dec("500")))

	// con inventario de vuelta, el reintento procesa
	fx.restock.fallar = false
	resp, err := fx.svc.Procesar(context.Background(), fx.cajero, id, dto.ProcesarDevolucionRequest{
		SesionCajaID: fx.sesionID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "procesada", resp.Estado)
	require.Len(t, fx.restock.llamadas, 1)
}

func TestCancelarSoloSolicitanteOSupervision(t *testing.T) {
	fx := newDevolucionFixture(t, "500")
	id := fx.crearAutorizada(t, itemBueno("40", 1))

	otroCajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	_, err := fx.svc.Cancelar(context.Background(), otroCajero, id)
	assertKind(t, err, apierror.KindForbidden)

	resp, err := fx.svc.Cancelar(context.Background(), fx.cajero, id)
	require.NoError(t, err)
	assert.Equal(t, "cancelada", resp.Estado)

	// cancelada es terminal
	_, err = fx.svc.Procesar(context.Background(), fx.cajero, id, dto.ProcesarDevolucionRequest{
		SesionCajaID: fx.sesionID.String(),
	})
	assertKind(t, err, apierror.KindInvalidState)
}

func TestCrearMotivoSoloAdministrador(t *testing.T) {
	fx := newDevolucionFixture(t, "100")

	req := dto.CrearMotivoRequest{
		Codigo:               "cortesia_direccion",
		Categoria:            "administrativo",
		Descripcion:          "condonación aprobada por dirección",
		RequiereAutorizacion: true,
	}

	_, err := fx.svc.CrearMotivo(context.Background(), fx.supervisor, req)
	assertKind(t, err, apierror.KindForbidden)

	admin := Actor{ID: uuid.New(), Rol: model.RolAdministrador}
	resp, err := fx.svc.CrearMotivo(context.Background(), admin, req)
	require.NoError(t, err)
	assert.Equal(t, "cortesia_direccion", resp.Codigo)

	_, err = fx.svc.CrearMotivo(context.Background(), admin, req)
	assertKind(t, err, apierror.KindConflict)
}
