package service

import (
	"context"
	"fmt"
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

type DepositoService interface {
	Preparar(ctx context.Context, actor Actor, req dto.PrepararDepositoRequest) (*dto.DepositoResponse, error)
	MarcarDepositado(ctx context.Context, actor Actor, id uuid.UUID, req dto.MarcarDepositadoRequest) (*dto.DepositoResponse, error)
	Confirmar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DepositoResponse, error)
	Rechazar(ctx context.Context, actor Actor, id uuid.UUID, motivo string) (*dto.DepositoResponse, error)
	Cancelar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DepositoResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.DepositoResponse, error)
	Listar(ctx context.Context, estado string, page, limit int) ([]dto.DepositoResponse, int64, error)
	// Conciliacion reconciles a date range: emitted receipts against
	// confirmed deposits overall, and per caja session the cash collected at
	// the till against the deposits it sourced, flagging sessions whose cash
	// has not reached the bank.
	Conciliacion(ctx context.Context, desde, hasta time.Time) (*dto.ConciliacionResponse, error)
}

type depositoService struct {
	repo       repository.DepositoRepository
	cajaRepo   repository.CajaRepository
	reciboRepo repository.ReciboRepository
	dispatcher *worker.Dispatcher
}

func NewDepositoService(
	repo repository.DepositoRepository,
	cajaRepo repository.CajaRepository,
	reciboRepo repository.ReciboRepository,
	dispatcher *worker.Dispatcher,
) DepositoService {
	return &depositoService{repo: repo, cajaRepo: cajaRepo, reciboRepo: reciboRepo, dispatcher: dispatcher}
}

// ── Preparar ──────────────────────────────────────────────────────────────────
// The total is always computed server-side. When the deposit drains a caja
// session, the cash leaves the till through a deposito_banco movement inside
// the same transaction.

func (s *depositoService) Preparar(ctx context.Context, actor Actor, req dto.PrepararDepositoRequest) (*dto.DepositoResponse, error) {
	total := req.MontoEfectivo.Add(req.MontoCheques)
	if !total.IsPositive() {
		return nil, apierror.Validation("el depósito debe incluir efectivo o cheques por un monto mayor que cero")
	}

	var sesionID *uuid.UUID
	if req.SesionCajaID != nil {
		id, err := uuid.Parse(*req.SesionCajaID)
		if err != nil {
			return nil, apierror.Validation("sesion_caja_id inválido")
		}
		sesionID = &id
	}

	dep := &model.Deposito{
		CuentaBancaria: req.CuentaBancaria,
		SesionCajaID:   sesionID,
		MontoEfectivo:  req.MontoEfectivo,
		MontoCheques:   req.MontoCheques,
		MontoTotal:     total,
		Estado:         "preparado",
		PreparadorID:   actor.ID,
		Observaciones:  req.Observaciones,
		PreparadoAt:    time.Now(),
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if sesionID != nil && req.MontoEfectivo.IsPositive() {
			sesion, err := sesionAbiertaTx(s.cajaRepo, tx, *sesionID)
			if err != nil {
				return err
			}
			disponible, err := s.cajaRepo.SumMovimientosTx(tx, sesion.ID)
			if err != nil {
				return err
			}
			if req.MontoEfectivo.GreaterThan(disponible) {
				return apierror.Validation("el efectivo a depositar %s excede el disponible en caja %s",
					req.MontoEfectivo.StringFixed(2), disponible.StringFixed(2))
			}
		}

		if err := s.repo.CreateTx(tx, dep); err != nil {
			return err
		}

		if sesionID != nil && req.MontoEfectivo.IsPositive() {
			mov := &model.MovimientoCaja{
				SesionCajaID: *sesionID,
				Tipo:         model.MovDepositoBanco,
				Monto:        req.MontoEfectivo,
				Concepto:     fmt.Sprintf("depósito bancario #%d", dep.NumeroDeposito),
				ReferenciaID: &dep.ID,
				CajeroID:     actor.ID,
			}
			return s.cajaRepo.CreateMovimientoTx(tx, mov)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return depositoToResponse(dep), nil
}

// ── MarcarDepositado ──────────────────────────────────────────────────────────
// The preparer went to the bank: records the slip number.

func (s *depositoService) MarcarDepositado(ctx context.Context, actor Actor, id uuid.UUID, req dto.MarcarDepositadoRequest) (*dto.DepositoResponse, error) {
	var dep *model.Deposito
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		dep, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "depósito no encontrado", "")
		}
		if err := fsm.Deposito.Guard("depósito", dep.Estado, "depositado"); err != nil {
			return err
		}

		now := time.Now()
		dep.Estado = "depositado"
		dep.NumeroBoleta = &req.NumeroBoleta
		dep.DepositadoAt = &now
		return s.repo.UpdateTx(tx, dep)
	})
	if txErr != nil {
		return nil, txErr
	}
	return depositoToResponse(dep), nil
}

// ── Confirmar ─────────────────────────────────────────────────────────────────
// Second pair of eyes: a supervisor who is not the preparer verifies the bank
// slip against the recorded amounts.

func (s *depositoService) Confirmar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DepositoResponse, error) {
	if actor.Rol != model.RolSupervisor && actor.Rol != model.RolAdministrador {
		return nil, apierror.Forbidden("solo un supervisor puede confirmar depósitos")
	}

	var dep *model.Deposito
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		dep, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "depósito no encontrado", "")
		}
		if err := fsm.Deposito.Guard("depósito", dep.Estado, "confirmado"); err != nil {
			return err
		}
		if actor.ID == dep.PreparadorID {
			return apierror.Authorization("quien preparó el depósito no puede confirmarlo")
		}

		now := time.Now()
		confirmador := actor.ID
		dep.Estado = "confirmado"
		dep.ConfirmadorID = &confirmador
		dep.ConfirmadoAt = &now
		return s.repo.UpdateTx(tx, dep)
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.PublishEvento(ctx, worker.EvDepositoConfirmado, map[string]interface{}{
			"deposito_id":     dep.ID.String(),
			"numero_deposito": dep.NumeroDeposito,
			"monto_total":     dep.MontoTotal.StringFixed(2),
			"confirmado_por":  actor.ID.String(),
		})
	}
	return depositoToResponse(dep), nil
}

// ── Rechazar ──────────────────────────────────────────────────────────────────
// The slip does not match (or the deposit never happened). If cash had left a
// session, an inverse ingreso returns it to the till.

func (s *depositoService) Rechazar(ctx context.Context, actor Actor, id uuid.UUID, motivo string) (*dto.DepositoResponse, error) {
	if actor.Rol != model.RolSupervisor && actor.Rol != model.RolAdministrador {
		return nil, apierror.Forbidden("solo un supervisor puede rechazar depósitos")
	}

	var dep *model.Deposito
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		dep, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "depósito no encontrado", "")
		}
		if err := fsm.Deposito.Guard("depósito", dep.Estado, "rechazado"); err != nil {
			return err
		}

		dep.Estado = "rechazado"
		dep.MotivoRechazo = &motivo
		if err := s.repo.UpdateTx(tx, dep); err != nil {
			return err
		}
		return s.reintegrarEfectivoTx(tx, actor, dep, "reintegro por depósito rechazado")
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.PublishEvento(ctx, worker.EvDepositoRechazado, map[string]interface{}{
			"deposito_id":     dep.ID.String(),
			"numero_deposito": dep.NumeroDeposito,
			"motivo":          motivo,
			"rechazado_por":   actor.ID.String(),
		})
	}
	return depositoToResponse(dep), nil
}

// ── Cancelar ──────────────────────────────────────────────────────────────────
// Only while preparado — once the cash left for the bank the rechazo path is
// the way back.

func (s *depositoService) Cancelar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DepositoResponse, error) {
	var dep *model.Deposito
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		dep, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "depósito no encontrado", "")
		}
		if err := fsm.Deposito.Guard("depósito", dep.Estado, "cancelado"); err != nil {
			return err
		}
		if actor.ID != dep.PreparadorID && actor.Rol != model.RolSupervisor && actor.Rol != model.RolAdministrador {
			return apierror.Forbidden("solo quien preparó el depósito o un supervisor puede cancelarlo")
		}

		dep.Estado = "cancelado"
		if err := s.repo.UpdateTx(tx, dep); err != nil {
			return err
		}
		return s.reintegrarEfectivoTx(tx, actor, dep, "reintegro por depósito cancelado")
	})
	if txErr != nil {
		return nil, txErr
	}
	return depositoToResponse(dep), nil
}

// reintegrarEfectivoTx returns the cash of an aborted deposit to its source
// session, provided the session still accepts movements. A closed session
// keeps its ledger untouched; the reintegration then has to travel through a
// manual movement on the current session.
func (s *depositoService) reintegrarEfectivoTx(tx *gorm.DB, actor Actor, dep *model.Deposito, concepto string) error {
	if dep.SesionCajaID == nil || !dep.MontoEfectivo.IsPositive() {
		return nil
	}
	sesion, err := s.cajaRepo.FindSesionByIDForUpdate(tx, *dep.SesionCajaID)
	if err != nil {
		return repository.MapError(err, "sesión de caja no encontrada", "")
	}
	if sesion.Estado != "abierta" {
		return nil
	}
	mov := &model.MovimientoCaja{
		SesionCajaID: sesion.ID,
		Tipo:         model.MovIngreso,
		Monto:        dep.MontoEfectivo,
		Concepto:     fmt.Sprintf("%s #%d", concepto, dep.NumeroDeposito),
		ReferenciaID: &dep.ID,
		CajeroID:     actor.ID,
	}
	return s.cajaRepo.CreateMovimientoTx(tx, mov)
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *depositoService) Obtener(ctx context.Context, id uuid.UUID) (*dto.DepositoResponse, error) {
	dep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repository.MapError(err, "depósito no encontrado", "")
	}
	return depositoToResponse(dep), nil
}

func (s *depositoService) Listar(ctx context.Context, estado string, page, limit int) ([]dto.DepositoResponse, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	depositos, total, err := s.repo.List(ctx, estado, page, limit)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]dto.DepositoResponse, 0, len(depositos))
	for i := range depositos {
		resp = append(resp, *depositoToResponse(&depositos[i]))
	}
	return resp, total, nil
}

// ── Conciliacion ──────────────────────────────────────────────────────────────
// Per session, the cash to account for is the signed movement ledger without
// the deposito_banco entries; against it count the deposits the session
// sourced, split by whether the bank already confirmed them. A positive
// remainder marks the session pendiente: cash collected that never left for
// the bank.

func (s *depositoService) Conciliacion(ctx context.Context, desde, hasta time.Time) (*dto.ConciliacionResponse, error) {
	recaudado, err := s.reciboRepo.TotalEmitidoEntre(ctx, desde, hasta)
	if err != nil {
		return nil, err
	}

	confirmados, err := s.repo.ListConfirmadosEntre(ctx, desde, hasta)
	if err != nil {
		return nil, err
	}
	depositado := decimal.Zero
	for i := range confirmados {
		depositado = depositado.Add(confirmados[i].MontoTotal)
	}

	sesiones, err := s.cajaRepo.ListSesionesEntre(ctx, desde, hasta)
	if err != nil {
		return nil, err
	}
	detalle := make([]dto.ConciliacionSesion, 0, len(sesiones))
	pendientes := 0
	for i := range sesiones {
		ses := &sesiones[i]

		efectivo := decimal.Zero
		for j := range ses.Movimientos {
			if ses.Movimientos[j].Tipo == model.MovDepositoBanco {
				continue
			}
			efectivo = efectivo.Add(ses.Movimientos[j].Efecto())
		}

		deps, err := s.repo.ListPorSesion(ctx, ses.ID)
		if err != nil {
			return nil, err
		}
		confirmado := decimal.Zero
		enTransito := decimal.Zero
		for j := range deps {
			switch deps[j].Estado {
			case "confirmado":
				confirmado = confirmado.Add(deps[j].MontoEfectivo)
			case "preparado", "depositado":
				enTransito = enTransito.Add(deps[j].MontoEfectivo)
			}
		}

		restante := efectivo.Sub(confirmado).Sub(enTransito)
		fila := dto.ConciliacionSesion{
			SesionCajaID:       ses.ID.String(),
			NumeroSesion:       ses.NumeroSesion,
			Estado:             ses.Estado,
			EfectivoRecaudado:  efectivo,
			EfectivoConfirmado: confirmado,
			EfectivoEnTransito: enTransito,
			EfectivoPendiente:  restante,
			Pendiente:          restante.IsPositive(),
		}
		if fila.Pendiente {
			pendientes++
		}
		detalle = append(detalle, fila)
	}

	return &dto.ConciliacionResponse{
		Desde:                desde.Format(time.RFC3339),
		Hasta:                hasta.Format(time.RFC3339),
		TotalRecaudado:       recaudado,
		TotalDepositado:      depositado,
		Diferencia:           recaudado.Sub(depositado),
		DepositosConfirmados: len(confirmados),
		Sesiones:             detalle,
		SesionesPendientes:   pendientes,
	}, nil
}

func depositoToResponse(d *model.Deposito) *dto.DepositoResponse {
	resp := &dto.DepositoResponse{
		ID:             d.ID.String(),
		NumeroDeposito: d.NumeroDeposito,
		CuentaBancaria: d.CuentaBancaria,
		MontoEfectivo:  d.MontoEfectivo,
		MontoCheques:   d.MontoCheques,
		MontoTotal:     d.MontoTotal,
		Estado:         d.Estado,
		PreparadorID:   d.PreparadorID.String(),
		NumeroBoleta:   d.NumeroBoleta,
		MotivoRechazo:  d.MotivoRechazo,
		PreparadoAt:    d.PreparadoAt.Format(time.RFC3339),
	}
	if d.SesionCajaID != nil {
		v := d.SesionCajaID.String()
		resp.SesionCajaID = &v
	}
	if d.ConfirmadorID != nil {
		v := d.ConfirmadorID.String()
		resp.ConfirmadorID = &v
	}
	if d.DepositadoAt != nil {
		v := d.DepositadoAt.Format(time.RFC3339)
		resp.DepositadoAt = &v
	}
	if d.ConfirmadoAt != nil {
		v := d.ConfirmadoAt.Format(time.RFC3339)
		resp.ConfirmadoAt = &v
	}
	return resp
}
