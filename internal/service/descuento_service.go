package service

import (
	"context"
	"time"

	"hospicaja/internal/apierror"
	"hospicaja/internal/dto"
	"hospicaja/internal/fsm"
	"hospicaja/internal/model"
	"hospicaja/internal/repository"
	"hospicaja/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DescuentoService interface {
	Solicitar(ctx context.Context, actor Actor, req dto.SolicitarDescuentoRequest) (*dto.DescuentoResponse, error)
	Autorizar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DescuentoResponse, error)
	Rechazar(ctx context.Context, actor Actor, id uuid.UUID, motivo string) (*dto.DescuentoResponse, error)
	Aplicar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DescuentoResponse, error)
	Revertir(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DescuentoResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.DescuentoResponse, error)
	Listar(ctx context.Context, estado string, page, limit int) ([]dto.DescuentoResponse, int64, error)

	CrearPolitica(ctx context.Context, actor Actor, req dto.CrearPoliticaRequest) (*dto.PoliticaResponse, error)
	ListarPoliticas(ctx context.Context, soloActivas bool) ([]dto.PoliticaResponse, error)
}

type descuentoService struct {
	repo       repository.DescuentoRepository
	cuentaRepo repository.CuentaRepository
	dispatcher *worker.Dispatcher
}

func NewDescuentoService(
	repo repository.DescuentoRepository,
	cuentaRepo repository.CuentaRepository,
	dispatcher *worker.Dispatcher,
) DescuentoService {
	return &descuentoService{repo: repo, cuentaRepo: cuentaRepo, dispatcher: dispatcher}
}

// ── Solicitar ─────────────────────────────────────────────────────────────────
// The calculated amount is clamped to the policy caps at request time and
// frozen: later balance changes never alter it. Policies that do not require
// approval authorize the request on the spot. A request without a policy has
// no caps beyond the balance itself, but always waits for approval.

func (s *descuentoService) Solicitar(ctx context.Context, actor Actor, req dto.SolicitarDescuentoRequest) (*dto.DescuentoResponse, error) {
	cuentaID, err := uuid.Parse(req.CuentaID)
	if err != nil {
		return nil, apierror.Validation("cuenta_id inválido")
	}

	var politica *model.PoliticaDescuento
	if req.PoliticaID != "" {
		politicaID, err := uuid.Parse(req.PoliticaID)
		if err != nil {
			return nil, apierror.Validation("politica_id inválido")
		}
		politica, err = s.repo.FindPoliticaByID(ctx, politicaID)
		if err != nil {
			return nil, repository.MapError(err, "política de descuento no encontrada", "")
		}
		if !politica.Activa {
			return nil, apierror.Precondition("la política %q está inactiva", politica.Nombre)
		}
		if !politica.RolesPermitidos.Contains(actor.Rol) {
			return nil, apierror.Forbidden("el rol %s no puede solicitar descuentos de la política %q",
				actor.Rol, politica.Nombre)
		}
	}

	cuenta, err := s.cuentaRepo.FindByID(ctx, cuentaID)
	if err != nil {
		return nil, repository.MapError(err, "cuenta de paciente no encontrada", "")
	}
	if !cuenta.SaldoPendiente.IsPositive() {
		return nil, apierror.Precondition("la cuenta no tiene saldo pendiente para descontar")
	}

	monto, err := calcularDescuento(politica, req.TipoCalculo, req.ValorSolicitado, cuenta.SaldoPendiente)
	if err != nil {
		return nil, err
	}

	categoria := req.Categoria
	if politica != nil {
		categoria = politica.Categoria
	}
	desc := &model.Descuento{
		CuentaID:        cuenta.ID,
		Categoria:       categoria,
		TipoCalculo:     req.TipoCalculo,
		ValorSolicitado: req.ValorSolicitado,
		MontoBase:       cuenta.SaldoPendiente,
		MontoCalculado:  monto,
		Estado:          "pendiente",
		SolicitanteID:   actor.ID,
		Justificacion:   req.Justificacion,
	}
	if politica != nil {
		desc.PoliticaID = &politica.ID
		if !politica.RequiereAprobacion {
			desc.Estado = "autorizado"
			aprobador := actor.ID
			desc.AprobadorID = &aprobador
		}
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.CreateTx(tx, desc)
	})
	if txErr != nil {
		return nil, txErr
	}
	desc.Politica = politica
	return descuentoToResponse(desc), nil
}

// calcularDescuento clamps the requested value to the policy caps (when a
// policy applies) and returns the resulting amount. A fixed amount above
// MontoMaximo, or a percentage above PorcentajeMaximo, is reduced to the cap
// rather than rejected. The base balance is always a cap of its own.
func calcularDescuento(politica *model.PoliticaDescuento, tipo string, valor, base decimal.Decimal) (decimal.Decimal, error) {
	var monto decimal.Decimal
	switch tipo {
	case model.CalculoPorcentaje:
		pct := valor
		tope := decimal.NewFromInt(100)
		if politica != nil {
			tope = politica.PorcentajeMaximo
		}
		if pct.GreaterThan(tope) {
			pct = tope
		}
		monto = base.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	case model.CalculoFijo:
		monto = valor
	default:
		return decimal.Zero, apierror.Validation("tipo_calculo desconocido: %s", tipo)
	}

	if politica != nil && politica.MontoMaximo != nil && monto.GreaterThan(*politica.MontoMaximo) {
		monto = *politica.MontoMaximo
	}
	if monto.GreaterThan(base) {
		monto = base
	}
	if !monto.IsPositive() {
		return decimal.Zero, apierror.Validation("el descuento calculado debe ser mayor que cero")
	}
	return monto, nil
}

// ── Autorizar / Rechazar ──────────────────────────────────────────────────────

func (s *descuentoService) Autorizar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DescuentoResponse, error) {
	return s.resolver(ctx, actor, id, "autorizado", nil)
}

func (s *descuentoService) Rechazar(ctx context.Context, actor Actor, id uuid.UUID, motivo string) (*dto.DescuentoResponse, error) {
	return s.resolver(ctx, actor, id, "rechazado", &motivo)
}

func (s *descuentoService) resolver(ctx context.Context, actor Actor, id uuid.UUID, destino string, motivo *string) (*dto.DescuentoResponse, error) {
	var desc *model.Descuento
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		desc, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "descuento no encontrado", "")
		}
		if err := fsm.Descuento.Guard("descuento", desc.Estado, destino); err != nil {
			return err
		}

		if err := s.checkAprobador(ctx, actor, desc); err != nil {
			return err
		}

		desc.Estado = destino
		aprobador := actor.ID
		desc.AprobadorID = &aprobador
		desc.MotivoRechazo = motivo
		return s.repo.UpdateTx(tx, desc)
	})
	if txErr != nil {
		return nil, txErr
	}
	return descuentoToResponse(desc), nil
}

// checkAprobador enforces approver roles and segregation of duties: the
// requester can never resolve their own request.
func (s *descuentoService) checkAprobador(ctx context.Context, actor Actor, desc *model.Descuento) error {
	if actor.ID == desc.SolicitanteID {
		return apierror.Authorization("el solicitante no puede resolver su propio descuento")
	}

	aprobadores := model.Roles{model.RolSupervisor, model.RolAdministrador}
	if desc.PoliticaID != nil {
		politica, err := s.repo.FindPoliticaByID(ctx, *desc.PoliticaID)
		if err == nil && len(politica.RolesAprobadores) > 0 {
			aprobadores = politica.RolesAprobadores
		}
	}
	if !aprobadores.Contains(actor.Rol) {
		return apierror.Forbidden("el rol %s no puede aprobar descuentos de esta política", actor.Rol)
	}
	return nil
}

// ── Aplicar ───────────────────────────────────────────────────────────────────
// The only transition that touches the account: subtracts MontoCalculado from
// the locked balance.

func (s *descuentoService) Aplicar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DescuentoResponse, error) {
	var desc *model.Descuento
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		desc, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "descuento no encontrado", "")
		}
		if err := fsm.Descuento.Guard("descuento", desc.Estado, "aplicado"); err != nil {
			return err
		}

		cuenta, err := s.cuentaRepo.FindByIDForUpdate(tx, desc.CuentaID)
		if err != nil {
			return repository.MapError(err, "cuenta de paciente no encontrada", "")
		}
		if desc.MontoCalculado.GreaterThan(cuenta.SaldoPendiente) {
			return apierror.Precondition("el descuento %s excede el saldo pendiente actual %s",
				desc.MontoCalculado.StringFixed(2), cuenta.SaldoPendiente.StringFixed(2))
		}

		if err := s.cuentaRepo.AjustarSaldoTx(tx, cuenta.ID, desc.MontoCalculado.Neg()); err != nil {
			return err
		}

		desc.Estado = "aplicado"
		return s.repo.UpdateTx(tx, desc)
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.PublishEvento(ctx, worker.EvDescuentoAplicado, map[string]interface{}{
			"descuento_id": desc.ID.String(),
			"cuenta_id":    desc.CuentaID.String(),
			"monto":        desc.MontoCalculado.StringFixed(2),
			"aplicado_por": actor.ID.String(),
		})
	}
	return descuentoToResponse(desc), nil
}

// ── Revertir ──────────────────────────────────────────────────────────────────
// Administrador-only compensation: re-adds the amount when the descuento had
// been applied. An autorizado-but-unapplied descuento reverts without
// touching the balance.

func (s *descuentoService) Revertir(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DescuentoResponse, error) {
	if actor.Rol != model.RolAdministrador {
		return nil, apierror.Forbidden("solo un administrador puede revertir descuentos")
	}

	var desc *model.Descuento
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		desc, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "descuento no encontrado", "")
		}
		if err := fsm.Descuento.Guard("descuento", desc.Estado, "revertido"); err != nil {
			return err
		}

		if desc.Estado == "aplicado" {
			if _, err := s.cuentaRepo.FindByIDForUpdate(tx, desc.CuentaID); err != nil {
				return repository.MapError(err, "cuenta de paciente no encontrada", "")
			}
			if err := s.cuentaRepo.AjustarSaldoTx(tx, desc.CuentaID, desc.MontoCalculado); err != nil {
				return err
			}
		}

		desc.Estado = "revertido"
		return s.repo.UpdateTx(tx, desc)
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.PublishEvento(ctx, worker.EvDescuentoRevertido, map[string]interface{}{
			"descuento_id":  desc.ID.String(),
			"cuenta_id":     desc.CuentaID.String(),
			"monto":         desc.MontoCalculado.StringFixed(2),
			"revertido_por": actor.ID.String(),
		})
	}
	return descuentoToResponse(desc), nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *descuentoService) Obtener(ctx context.Context, id uuid.UUID) (*dto.DescuentoResponse, error) {
	desc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repository.MapError(err, "descuento no encontrado", "")
	}
	return descuentoToResponse(desc), nil
}

func (s *descuentoService) Listar(ctx context.Context, estado string, page, limit int) ([]dto.DescuentoResponse, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	descuentos, total, err := s.repo.List(ctx, estado, page, limit)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]dto.DescuentoResponse, 0, len(descuentos))
	for i := range descuentos {
		resp = append(resp, *descuentoToResponse(&descuentos[i]))
	}
	return resp, total, nil
}

// ── Políticas ─────────────────────────────────────────────────────────────────

func (s *descuentoService) CrearPolitica(ctx context.Context, actor Actor, req dto.CrearPoliticaRequest) (*dto.PoliticaResponse, error) {
	if actor.Rol != model.RolAdministrador {
		return nil, apierror.Forbidden("solo un administrador puede crear políticas de descuento")
	}
	if req.PorcentajeMaximo.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apierror.Validation("porcentaje_maximo no puede exceder 100")
	}
	aprobadores := model.Roles(req.RolesAprobadores)
	if req.RequiereAprobacion && len(aprobadores) == 0 {
		aprobadores = model.Roles{model.RolSupervisor, model.RolAdministrador}
	}

	politica := &model.PoliticaDescuento{
		Nombre:             req.Nombre,
		Categoria:          req.Categoria,
		PorcentajeMaximo:   req.PorcentajeMaximo,
		MontoMaximo:        req.MontoMaximo,
		RolesPermitidos:    model.Roles(req.RolesPermitidos),
		RequiereAprobacion: req.RequiereAprobacion,
		RolesAprobadores:   aprobadores,
		Activa:             true,
	}
	if err := s.repo.CreatePolitica(ctx, politica); err != nil {
		return nil, repository.MapError(err, "", "ya existe una política con ese nombre")
	}
	return politicaToResponse(politica), nil
}

func (s *descuentoService) ListarPoliticas(ctx context.Context, soloActivas bool) ([]dto.PoliticaResponse, error) {
	politicas, err := s.repo.ListPoliticas(ctx, soloActivas)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.PoliticaResponse, 0, len(politicas))
	for i := range politicas {
		resp = append(resp, *politicaToResponse(&politicas[i]))
	}
	return resp, nil
}

func descuentoToResponse(d *model.Descuento) *dto.DescuentoResponse {
	resp := &dto.DescuentoResponse{
		ID:              d.ID.String(),
		Numero:          d.Numero,
		CuentaID:        d.CuentaID.String(),
		Categoria:       d.Categoria,
		TipoCalculo:     d.TipoCalculo,
		ValorSolicitado: d.ValorSolicitado,
		MontoBase:       d.MontoBase,
		MontoCalculado:  d.MontoCalculado,
		Estado:          d.Estado,
		SolicitanteID:   d.SolicitanteID.String(),
		Justificacion:   d.Justificacion,
		MotivoRechazo:   d.MotivoRechazo,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
	}
	if d.PoliticaID != nil {
		p := d.PoliticaID.String()
		resp.PoliticaID = &p
	}
	if d.AprobadorID != nil {
		a := d.AprobadorID.String()
		resp.AprobadorID = &a
	}
	return resp
}

func politicaToResponse(p *model.PoliticaDescuento) *dto.PoliticaResponse {
	return &dto.PoliticaResponse{
		ID:                 p.ID.String(),
		Nombre:             p.Nombre,
		Categoria:          p.Categoria,
		PorcentajeMaximo:   p.PorcentajeMaximo,
		MontoMaximo:        p.MontoMaximo,
		RolesPermitidos:    p.RolesPermitidos,
		RequiereAprobacion: p.RequiereAprobacion,
		RolesAprobadores:   p.RolesAprobadores,
		Activa:             p.Activa,
	}
}
