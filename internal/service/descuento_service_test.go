package service

import (
	"context"
	"testing"

	"hospicaja/internal/apierror"
	"hospicaja/internal/dto"
	"hospicaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── In-memory fakes ───────────────────────────────────────────────────────────

type fakeCuentaRepo struct {
	cuentas map[uuid.UUID]*model.CuentaPaciente
}

func newFakeCuentaRepo() *fakeCuentaRepo {
	return &fakeCuentaRepo{cuentas: make(map[uuid.UUID]*model.CuentaPaciente)}
}

func (f *fakeCuentaRepo) DB() *gorm.DB { return nil }

func (f *fakeCuentaRepo) Create(_ context.Context, c *model.CuentaPaciente) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.cuentas[c.ID] = c
	return nil
}

func (f *fakeCuentaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.CuentaPaciente, error) {
	c, ok := f.cuentas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeCuentaRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.CuentaPaciente, error) {
	c, ok := f.cuentas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeCuentaRepo) AjustarSaldoTx(_ *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	c, ok := f.cuentas[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.SaldoPendiente = c.SaldoPendiente.Add(delta)
	return nil
}

func (f *fakeCuentaRepo) agregar(saldo string) *model.CuentaPaciente {
	c := &model.CuentaPaciente{
		ID:             uuid.New(),
		PacienteID:     uuid.New(),
		SaldoPendiente: dec(saldo),
		Activa:         true,
	}
	f.cuentas[c.ID] = c
	return c
}

type fakeDescuentoRepo struct {
	descuentos map[uuid.UUID]*model.Descuento
	politicas  map[uuid.UUID]*model.PoliticaDescuento
	nextNumero int64
}

func newFakeDescuentoRepo() *fakeDescuentoRepo {
	return &fakeDescuentoRepo{
		descuentos: make(map[uuid.UUID]*model.Descuento),
		politicas:  make(map[uuid.UUID]*model.PoliticaDescuento),
	}
}

func (f *fakeDescuentoRepo) DB() *gorm.DB { return nil }

func (f *fakeDescuentoRepo) CreateTx(_ *gorm.DB, d *model.Descuento) error {
	d.ID = uuid.New()
	f.nextNumero++
	d.Numero = f.nextNumero
	f.descuentos[d.ID] = d
	return nil
}

func (f *fakeDescuentoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Descuento, error) {
	d, ok := f.descuentos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (f *fakeDescuentoRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.Descuento, error) {
	d, ok := f.descuentos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (f *fakeDescuentoRepo) UpdateTx(_ *gorm.DB, d *model.Descuento) error {
	f.descuentos[d.ID] = d
	return nil
}

func (f *fakeDescuentoRepo) List(_ context.Context, estado string, _, _ int) ([]model.Descuento, int64, error) {
	var out []model.Descuento
	for _, d := range f.descuentos {
		if estado == "" || estado == "all" || d.Estado == estado {
			out = append(out, *d)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeDescuentoRepo) CreatePolitica(_ context.Context, p *model.PoliticaDescuento) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.politicas[p.ID] = p
	return nil
}

func (f *fakeDescuentoRepo) FindPoliticaByID(_ context.Context, id uuid.UUID) (*model.PoliticaDescuento, error) {
	p, ok := f.politicas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeDescuentoRepo) ListPoliticas(_ context.Context, soloActivas bool) ([]model.PoliticaDescuento, error) {
	var out []model.PoliticaDescuento
	for _, p := range f.politicas {
		if !soloActivas || p.Activa {
			out = append(out, *p)
		}
	}
	return out, nil
}

func politicaSocial(repo *fakeDescuentoRepo) *model.PoliticaDescuento {
	p := &model.PoliticaDescuento{
		ID:                 uuid.New(),
		Nombre:             "Trabajo social",
		Categoria:          "social",
		PorcentajeMaximo:   dec("10"),
		RolesPermitidos:    model.Roles{model.RolCajero, model.RolSupervisor, model.RolAdministrador},
		RequiereAprobacion: true,
		RolesAprobadores:   model.Roles{model.RolSupervisor, model.RolAdministrador},
		Activa:             true,
	}
	repo.politicas[p.ID] = p
	return p
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestSolicitarRecortaPorcentajeAlTope(t *testing.T) {
	repo := newFakeDescuentoRepo()
	cuentas := newFakeCuentaRepo()
	svc := NewDescuentoService(repo, cuentas, nil)

	politica := politicaSocial(repo)
	cuenta := cuentas.agregar("1000")
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}

	// pide 15% sobre una política con tope del 10%
	resp, err := svc.Solicitar(context.Background(), cajero, dto.SolicitarDescuentoRequest{
		CuentaID:        cuenta.ID.String(),
		PoliticaID:      politica.ID.String(),
		TipoCalculo:     model.CalculoPorcentaje,
		ValorSolicitado: dec("15"),
		Justificacion:   "paciente sin cobertura médica",
	})
	require.NoError(t, err)
	assert.True(t, resp.MontoCalculado.Equal(dec("100")), "esperaba 100, obtuve %s", resp.MontoCalculado)
	assert.Equal(t, "pendiente", resp.Estado)
}

func TestSolicitarMontoFijoRecortadoAlSaldo(t *testing.T) {
	repo := newFakeDescuentoRepo()
	cuentas := newFakeCuentaRepo()
	svc := NewDescuentoService(repo, cuentas, nil)

	politica := politicaSocial(repo)
	politica.PorcentajeMaximo = dec("100")
	cuenta := cuentas.agregar("80")
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}

	resp, err := svc.Solicitar(context.Background(), cajero, dto.SolicitarDescuentoRequest{
		CuentaID:        cuenta.ID.String(),
		PoliticaID:      politica.ID.String(),
		TipoCalculo:     model.CalculoFijo,
		ValorSolicitado: dec("200"),
		Justificacion:   "condonación por indigencia",
	})
	require.NoError(t, err)
	assert.True(t, resp.MontoCalculado.Equal(dec("80")))
}

func TestSolicitarRolNoPermitido(t *testing.T) {
	repo := newFakeDescuentoRepo()
	cuentas := newFakeCuentaRepo()
	svc := NewDescuentoService(repo, cuentas, nil)

	politica := politicaSocial(repo)
	politica.RolesPermitidos = model.Roles{model.RolSupervisor}
	cuenta := cuentas.agregar("500")
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}

	_, err := svc.Solicitar(context.Background(), cajero, dto.SolicitarDescuentoRequest{
		CuentaID:        cuenta.ID.String(),
		PoliticaID:      politica.ID.String(),
		TipoCalculo:     model.CalculoPorcentaje,
		ValorSolicitado: dec("5"),
		Justificacion:   "paciente de escasos recursos",
	})
	assertKind(t, err, apierror.KindForbidden)
}

func TestSinAprobacionQuedaAutorizado(t *testing.T) {
	repo := newFakeDescuentoRepo()
	cuentas := newFakeCuentaRepo()
	svc := NewDescuentoService(repo, cuentas, nil)

	politica := politicaSocial(repo)
	politica.RequiereAprobacion = false
	cuenta := cuentas.agregar("300")
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}

	resp, err := svc.Solicitar(context.Background(), cajero, dto.SolicitarDescuentoRequest{
		CuentaID:        cuenta.ID.String(),
		PoliticaID:      politica.ID.String(),
		TipoCalculo:     model.CalculoPorcentaje,
		ValorSolicitado: dec("10"),
		Justificacion:   "descuento de rutina autorizado",
	})
	require.NoError(t, err)
	assert.Equal(t, "autorizado", resp.Estado)
	require.NotNil(t, resp.AprobadorID)
}

func TestSolicitarSinPolitica(t *testing.T) {
	repo := newFakeDescuentoRepo()
	cuentas := newFakeCuentaRepo()
	svc := NewDescuentoService(repo, cuentas, nil)

	cuenta := cuentas.agregar("1000")
	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	supervisor := Actor{ID: uuid.New(), Rol: model.RolSupervisor}

	// sin política no hay topes, pero la aprobación siempre es obligatoria
	resp, err := svc.Solicitar(context.Background(), cajero, dto.SolicitarDescuentoRequest{
		CuentaID:        cuenta.ID.String(),
		Categoria:       "social",
		TipoCalculo:     model.CalculoPorcentaje,
		ValorSolicitado: dec("15"),
		Justificacion:   "paciente sin cobertura médica",
	})
	require.NoError(t, err)
	assert.Nil(t, resp.PoliticaID)
	assert.Equal(t, "social", resp.Categoria)
	assert.True(t, resp.MontoCalculado.Equal(dec("150")))
	assert.Equal(t, "pendiente", resp.Estado)

	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	aprobado, err := svc.Autorizar(context.Background(), supervisor, id)
	require.NoError(t, err)
	assert.Equal(t, "autorizado", aprobado.Estado)
}

func solicitarPendiente(t *testing.T, svc DescuentoService, repo *fakeDescuentoRepo, cuentas *fakeCuentaRepo, solicitante Actor) uuid.UUID {
	t.Helper()
	politica := politicaSocial(repo)
	cuenta := cuentas.agregar("1000")
	resp, err := svc.Solicitar(context.Background(), solicitante, dto.SolicitarDescuentoRequest{
		CuentaID:        cuenta.ID.String(),
		PoliticaID:      politica.ID.String(),
		TipoCalculo:     model.CalculoPorcentaje,
		ValorSolicitado: dec("10"),
		Justificacion:   "paciente sin cobertura médica",
	})
	require.NoError(t, err)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

func TestSolicitanteNoPuedeAutoAprobarse(t *testing.T) {
	repo := newFakeDescuentoRepo()
	cuentas := newFakeCuentaRepo()
	svc := NewDescuentoService(repo, cuentas, nil)

	supervisor := Actor{ID: uuid.New(), Rol: model.RolSupervisor}
	id := solicitarPendiente(t, svc, repo, cuentas, supervisor)

	_, err := svc.Autorizar(context.Background(), supervisor, id)
	assertKind(t, err, apierror.KindAuthorization)
}

func TestAplicarDescuentaDelSaldo(t *testing.T) {
	repo := newFakeDescuentoRepo()
	cuentas := newFakeCuentaRepo()
	svc := NewDescuentoService(repo, cuentas, nil)

	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	supervisor := Actor{ID: uuid.New(), Rol: model.RolSupervisor}
	id := solicitarPendiente(t, svc, repo, cuentas, cajero)

	_, err := svc.Autorizar(context.Background(), supervisor, id)
	require.NoError(t, err)

	resp, err := svc.Aplicar(context.Background(), cajero, id)
	require.NoError(t, err)
	assert.Equal(t, "aplicado", resp.Estado)

	cuentaID, _ := uuid.Parse(resp.CuentaID)
	cuenta := cuentas.cuentas[cuentaID]
	assert.True(t, cuenta.SaldoPendiente.Equal(dec("900")))

	// aplicar de nuevo es transición ilegal
	_, err = svc.Aplicar(context.Background(), cajero, id)
	assertKind(t, err, apierror.KindInvalidState)
}

func TestRevertirReintegraSaldo(t *testing.T) {
	repo := newFakeDescuentoRepo()
	cuentas := newFakeCuentaRepo()
	svc := NewDescuentoService(repo, cuentas, nil)

	cajero := Actor{ID: uuid.New(), Rol: model.RolCajero}
	supervisor := Actor{ID: uuid.New(), Rol: model.RolSupervisor}
	admin := Actor{ID: uuid.New(), Rol: model.RolAdministrador}
	id := solicitarPendiente(t, svc, repo, cuentas, cajero)

	_, err := svc.Autorizar(context.Background(), supervisor, id)
	require.NoError(t, err)
	resp, err := svc.Aplicar(context.Background(), cajero, id)
	require.NoError(t, err)

	// el supervisor no alcanza para revertir
	_, err = svc.Revertir(context.Background(), supervisor, id)
	assertKind(t, err, apierror.KindForbidden)

	_, err = svc.Revertir(context.Background(), admin, id)
	require.NoError(t, err)

	cuentaID, _ := uuid.Parse(resp.CuentaID)
	assert.True(t, cuentas.cuentas[cuentaID].SaldoPendiente.Equal(dec("1000")))
}

func TestCrearPoliticaSoloAdministrador(t *testing.T) {
	repo := newFakeDescuentoRepo()
	svc := NewDescuentoService(repo, newFakeCuentaRepo(), nil)

	req := dto.CrearPoliticaRequest{
		Nombre:           "Convenio obra social",
		Categoria:        "convenio",
		PorcentajeMaximo: dec("25"),
		RolesPermitidos:  []string{model.RolCajero},
	}

	_, err := svc.CrearPolitica(context.Background(), Actor{ID: uuid.New(), Rol: model.RolSupervisor}, req)
	assertKind(t, err, apierror.KindForbidden)

	resp, err := svc.CrearPolitica(context.Background(), Actor{ID: uuid.New(), Rol: model.RolAdministrador}, req)
	require.NoError(t, err)
	assert.True(t, resp.Activa)
}
