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

type CajaService interface {
	Abrir(ctx context.Context, actor Actor, req dto.AbrirCajaRequest) (*dto.ReporteCajaResponse, error)
	RegistrarMovimiento(ctx context.Context, actor Actor, req dto.MovimientoCajaRequest) error
	Arqueo(ctx context.Context, actor Actor, req dto.ArqueoRequest) (*dto.ArqueoResponse, error)
	Cerrar(ctx context.Context, actor Actor, req dto.CerrarCajaRequest) (*dto.ReporteCajaResponse, error)
	ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error)
	SesionActiva(ctx context.Context, cajeroID uuid.UUID) (*dto.ReporteCajaResponse, error)
	Historial(ctx context.Context, page, limit int) ([]dto.SesionCajaListItem, int64, error)
}

type cajaService struct {
	repo       repository.CajaRepository
	dispatcher *worker.Dispatcher
	// desvioUmbral is the absolute discrepancy above which a close requires
	// justification plus supervisor authorization
	desvioUmbral decimal.Decimal
}

func NewCajaService(repo repository.CajaRepository, dispatcher *worker.Dispatcher, desvioUmbral decimal.Decimal) CajaService {
	return &cajaService{repo: repo, dispatcher: dispatcher, desvioUmbral: desvioUmbral}
}

// sesionAbiertaTx locks the session row inside tx and verifies it still
// accepts movements. Shared by the services that record cash against an open
// session (pagos, devoluciones, depósitos).
func sesionAbiertaTx(repo repository.CajaRepository, tx *gorm.DB, sesionID uuid.UUID) (*model.SesionCaja, error) {
	sesion, err := repo.FindSesionByIDForUpdate(tx, sesionID)
	if err != nil {
		return nil, repository.MapError(err, "sesión de caja no encontrada", "")
	}
	if sesion.Estado != "abierta" {
		return nil, apierror.InvalidState("la sesión de caja está en estado %s, no acepta movimientos", sesion.Estado)
	}
	return sesion, nil
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, actor Actor, req dto.AbrirCajaRequest) (*dto.ReporteCajaResponse, error) {
	// Pre-flight guard for a friendly message; the partial unique index on
	// sesiones_caja closes the race when two aperturas arrive together.
	if existing, err := s.repo.FindSesionAbiertaPorCajero(ctx, actor.ID); err == nil && existing != nil {
		return nil, apierror.Conflict("el cajero ya tiene la sesión #%d sin cerrar", existing.NumeroSesion)
	}

	sesion := &model.SesionCaja{
		CajeroID:     actor.ID,
		Turno:        req.Turno,
		MontoInicial: req.MontoInicial,
		Estado:       "abierta",
		OpenedAt:     time.Now(),
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.CreateSesionTx(tx, sesion); err != nil {
			return repository.MapError(err, "", "el cajero ya tiene una caja sin cerrar")
		}
		if req.MontoInicial.IsPositive() {
			mov := &model.MovimientoCaja{
				SesionCajaID: sesion.ID,
				Tipo:         model.MovFondoApertura,
				Monto:        req.MontoInicial,
				Concepto:     "fondo de apertura",
				CajeroID:     actor.ID,
			}
			return s.repo.CreateMovimientoTx(tx, mov)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.PublishEvento(ctx, worker.EvCajaAbierta, map[string]interface{}{
			"sesion_caja_id": sesion.ID.String(),
			"cajero_id":      actor.ID.String(),
			"turno":          sesion.Turno,
		})
	}

	return s.ObtenerReporte(ctx, sesion.ID)
}

// ── RegistrarMovimiento ───────────────────────────────────────────────────────
// Movements are immutable events — there is no update or delete path;
// corrections happen through inverse entries.

func (s *cajaService) RegistrarMovimiento(ctx context.Context, actor Actor, req dto.MovimientoCajaRequest) error {
	sesionID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		return apierror.Validation("sesion_caja_id inválido")
	}

	var referencia *uuid.UUID
	if req.ReferenciaID != nil {
		ref, err := uuid.Parse(*req.ReferenciaID)
		if err != nil {
			return apierror.Validation("referencia_id inválido")
		}
		referencia = &ref
	}

	return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := sesionAbiertaTx(s.repo, tx, sesionID)
		if err != nil {
			return err
		}

		mov := &model.MovimientoCaja{
			SesionCajaID: sesion.ID,
			Tipo:         req.Tipo,
			Monto:        req.Monto,
			Concepto:     req.Concepto,
			MetodoPago:   req.MetodoPago,
			ReferenciaID: referencia,
			CajeroID:     actor.ID,
		}

		// An outflow can never exceed the cash the till holds right now.
		if !mov.EsIngreso() {
			disponible, err := s.repo.SumMovimientosTx(tx, sesion.ID)
			if err != nil {
				return err
			}
			if req.Monto.GreaterThan(disponible) {
				return apierror.Validation("el egreso de %s excede el efectivo disponible (%s)",
					req.Monto.StringFixed(2), disponible.StringFixed(2))
			}
		}

		return s.repo.CreateMovimientoTx(tx, mov)
	})
}

// ── Arqueo ────────────────────────────────────────────────────────────────────
// Blind count: the expected balance is only computed after the declaration
// arrives. Re-declaring while still in arqueo is allowed.

func (s *cajaService) Arqueo(ctx context.Context, actor Actor, req dto.ArqueoRequest) (*dto.ArqueoResponse, error) {
	sesionID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		return nil, apierror.Validation("sesion_caja_id inválido")
	}

	var resp dto.ArqueoResponse
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := s.repo.FindSesionByIDForUpdate(tx, sesionID)
		if err != nil {
			return repository.MapError(err, "sesión de caja no encontrada", "")
		}
		if err := fsm.Caja.Guard("sesión de caja", sesion.Estado, "arqueo"); err != nil {
			return err
		}

		if err := s.declararTx(tx, sesion, req.MontoDeclarado); err != nil {
			return err
		}
		sesion.Estado = "arqueo"
		if err := s.repo.UpdateSesionTx(tx, sesion); err != nil {
			return err
		}

		resp = dto.ArqueoResponse{
			SesionCajaID:   sesion.ID.String(),
			MontoEsperado:  *sesion.MontoEsperado,
			MontoDeclarado: *sesion.MontoDeclarado,
			Desvio:         *sesion.Desvio,
			Estado:         sesion.Estado,
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &resp, nil
}

// declararTx computes esperado/desvío for a declaration and stores them on
// the session (not yet persisted). The expected balance is the signed sum of
// the movement ledger — the opening float entered as fondo_apertura.
func (s *cajaService) declararTx(tx *gorm.DB, sesion *model.SesionCaja, declarado decimal.Decimal) error {
	esperado, err := s.repo.SumMovimientosTx(tx, sesion.ID)
	if err != nil {
		return err
	}
	desvio := declarado.Sub(esperado)

	sesion.MontoEsperado = &esperado
	sesion.MontoDeclarado = &declarado
	sesion.Desvio = &desvio
	return nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// Accepts an inline declaration when the session is still abierta. A desvío
// beyond the configured threshold demands a written justification and a
// supervisor (or administrador) performing the close.

func (s *cajaService) Cerrar(ctx context.Context, actor Actor, req dto.CerrarCajaRequest) (*dto.ReporteCajaResponse, error) {
	sesionID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		return nil, apierror.Validation("sesion_caja_id inválido")
	}

	var desvioExcedido bool
	var desvioFinal decimal.Decimal
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := s.repo.FindSesionByIDForUpdate(tx, sesionID)
		if err != nil {
			return repository.MapError(err, "sesión de caja no encontrada", "")
		}

		if sesion.Estado == "abierta" {
			if req.MontoDeclarado == nil {
				return apierror.Precondition("la sesión no tiene arqueo: declare el efectivo contado antes de cerrar")
			}
			if err := s.declararTx(tx, sesion, *req.MontoDeclarado); err != nil {
				return err
			}
			sesion.Estado = "arqueo"
		}
		if err := fsm.Caja.Guard("sesión de caja", sesion.Estado, "cerrada"); err != nil {
			return err
		}

		desvioFinal = *sesion.Desvio
		if desvioFinal.Abs().GreaterThan(s.desvioUmbral) {
			desvioExcedido = true
			if req.Justificacion == nil || *req.Justificacion == "" {
				return apierror.Authorization("el desvío de %s excede el umbral de %s: se requiere justificación",
					desvioFinal.StringFixed(2), s.desvioUmbral.StringFixed(2))
			}
			if actor.Rol != model.RolSupervisor && actor.Rol != model.RolAdministrador {
				return apierror.Authorization("el cierre con desvío fuera de umbral debe autorizarlo un supervisor")
			}
			sesion.Justificacion = req.Justificacion
			autorizador := actor.ID
			sesion.AutorizadorID = &autorizador
		} else if req.Justificacion != nil && *req.Justificacion != "" {
			sesion.Justificacion = req.Justificacion
		}

		now := time.Now()
		sesion.Estado = "cerrada"
		sesion.ClosedAt = &now
		return s.repo.UpdateSesionTx(tx, sesion)
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.dispatcher != nil {
		justificacion := ""
		if req.Justificacion != nil {
			justificacion = *req.Justificacion
		}
		_ = s.dispatcher.PublishEvento(ctx, worker.EvCajaCerrada, map[string]interface{}{
			"sesion_caja_id":  sesionID.String(),
			"cerrado_por":     actor.ID.String(),
			"desvio":          desvioFinal.StringFixed(2),
			"desvio_excedido": desvioExcedido,
			"justificacion":   justificacion,
		})
	}

	return s.ObtenerReporte(ctx, sesionID)
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *cajaService) ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error) {
	sesion, err := s.repo.FindSesionByID(ctx, sesionID)
	if err != nil {
		return nil, repository.MapError(err, "sesión de caja no encontrada", "")
	}
	return buildReporte(sesion), nil
}

func (s *cajaService) SesionActiva(ctx context.Context, cajeroID uuid.UUID) (*dto.ReporteCajaResponse, error) {
	sesion, err := s.repo.FindSesionAbiertaPorCajero(ctx, cajeroID)
	if err != nil {
		return nil, repository.MapError(err, "el cajero no tiene una caja abierta", "")
	}
	return s.ObtenerReporte(ctx, sesion.ID)
}

func (s *cajaService) Historial(ctx context.Context, page, limit int) ([]dto.SesionCajaListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	sesiones, total, err := s.repo.ListSesiones(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	items := make([]dto.SesionCajaListItem, 0, len(sesiones))
	for i := range sesiones {
		se := &sesiones[i]
		item := dto.SesionCajaListItem{
			SesionCajaID: se.ID.String(),
			NumeroSesion: se.NumeroSesion,
			CajeroID:     se.CajeroID.String(),
			Turno:        se.Turno,
			Estado:       se.Estado,
			Desvio:       se.Desvio,
			OpenedAt:     se.OpenedAt.Format(time.RFC3339),
		}
		if se.ClosedAt != nil {
			t := se.ClosedAt.Format(time.RFC3339)
			item.ClosedAt = &t
		}
		items = append(items, item)
	}
	return items, total, nil
}

func buildReporte(sesion *model.SesionCaja) *dto.ReporteCajaResponse {
	esperado := decimal.Zero
	movs := make([]dto.MovimientoCajaResponse, 0, len(sesion.Movimientos))
	for i := range sesion.Movimientos {
		m := &sesion.Movimientos[i]
		esperado = esperado.Add(m.Efecto())
		movs = append(movs, dto.MovimientoCajaResponse{
			ID:         m.ID.String(),
			Tipo:       m.Tipo,
			Monto:      m.Monto,
			Concepto:   m.Concepto,
			MetodoPago: m.MetodoPago,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		})
	}

	reporte := &dto.ReporteCajaResponse{
		SesionCajaID:   sesion.ID.String(),
		NumeroSesion:   sesion.NumeroSesion,
		CajeroID:       sesion.CajeroID.String(),
		Turno:          sesion.Turno,
		MontoInicial:   sesion.MontoInicial,
		MontoEsperado:  esperado,
		MontoDeclarado: sesion.MontoDeclarado,
		Desvio:         sesion.Desvio,
		Estado:         sesion.Estado,
		Justificacion:  sesion.Justificacion,
		Movimientos:    movs,
		OpenedAt:       sesion.OpenedAt.Format(time.RFC3339),
	}
	if sesion.ClosedAt != nil {
		t := sesion.ClosedAt.Format(time.RFC3339)
		reporte.ClosedAt = &t
	}
	return reporte
}
