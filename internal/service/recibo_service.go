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

type ReciboService interface {
	// PagarCuenta collects a payment against a patient account: balance
	// adjustment, caja movement and receipt emission happen in one
	// transaction.
	PagarCuenta(ctx context.Context, actor Actor, req dto.PagarCuentaRequest) (*dto.ReciboResponse, error)
	Cancelar(ctx context.Context, actor Actor, id uuid.UUID, motivo string) (*dto.ReciboResponse, error)
	Reimprimir(ctx context.Context, actor Actor, id uuid.UUID) (*dto.ReciboResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.ReciboResponse, error)
	Listar(ctx context.Context, serie string, page, limit int) ([]dto.ReciboResponse, int64, error)

	// EmitirTx assigns the next folio and persists the recibo inside the
	// caller's transaction. Used by DevolucionService for refund receipts.
	EmitirTx(tx *gorm.DB, rec *model.Recibo) error
	// NotificarEmision fans out the async side effects (PDF render, domain
	// event) after the emitting transaction committed.
	NotificarEmision(ctx context.Context, rec *model.Recibo)
}

type reciboService struct {
	repo       repository.ReciboRepository
	cuentaRepo repository.CuentaRepository
	cajaRepo   repository.CajaRepository
	dispatcher *worker.Dispatcher
	serie      string
}

func NewReciboService(
	repo repository.ReciboRepository,
	cuentaRepo repository.CuentaRepository,
	cajaRepo repository.CajaRepository,
	dispatcher *worker.Dispatcher,
	serie string,
) ReciboService {
	return &reciboService{
		repo:       repo,
		cuentaRepo: cuentaRepo,
		cajaRepo:   cajaRepo,
		dispatcher: dispatcher,
		serie:      serie,
	}
}

// ── Emisión ───────────────────────────────────────────────────────────────────

func (s *reciboService) EmitirTx(tx *gorm.DB, rec *model.Recibo) error {
	if rec.Serie == "" {
		rec.Serie = s.serie
	}
	folio, err := s.repo.NextFolioTx(tx, rec.Serie)
	if err != nil {
		return repository.MapError(err, "serie de recibos no configurada: "+rec.Serie, "")
	}
	rec.Folio = folio
	rec.Estado = "emitido"
	rec.EmitidoAt = time.Now()
	return s.repo.CreateTx(tx, rec)
}

func (s *reciboService) NotificarEmision(ctx context.Context, rec *model.Recibo) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.EnqueuePDF(ctx, worker.PDFJobPayload{ReciboID: rec.ID.String()})
	_ = s.dispatcher.PublishEvento(ctx, worker.EvReciboEmitido, map[string]interface{}{
		"recibo_id": rec.ID.String(),
		"serie":     rec.Serie,
		"folio":     rec.Folio,
		"tipo":      rec.Tipo,
		"total":     rec.Total.StringFixed(2),
	})
}

// ── PagarCuenta ───────────────────────────────────────────────────────────────
// pago_cuenta settles the full balance (change allowed), pago_parcial pays up
// to the balance, anticipo pre-pays future services and may leave the account
// in credit.

func (s *reciboService) PagarCuenta(ctx context.Context, actor Actor, req dto.PagarCuentaRequest) (*dto.ReciboResponse, error) {
	cuentaID, err := uuid.Parse(req.CuentaID)
	if err != nil {
		return nil, apierror.Validation("cuenta_id inválido")
	}
	sesionID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		return nil, apierror.Validation("sesion_caja_id inválido")
	}

	var rec model.Recibo
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := sesionAbiertaTx(s.cajaRepo, tx, sesionID)
		if err != nil {
			return err
		}

		cuenta, err := s.cuentaRepo.FindByIDForUpdate(tx, cuentaID)
		if err != nil {
			return repository.MapError(err, "cuenta de paciente no encontrada", "")
		}
		if !cuenta.Activa {
			return apierror.Precondition("la cuenta del paciente está inactiva")
		}

		var total, cambio decimal.Decimal
		switch req.Tipo {
		case model.ReciboPagoCuenta:
			if !cuenta.SaldoPendiente.IsPositive() {
				return apierror.Precondition("la cuenta no tiene saldo pendiente")
			}
			if req.MontoRecibido.LessThan(cuenta.SaldoPendiente) {
				return apierror.Validation("el monto recibido %s no cubre el saldo pendiente %s",
					req.MontoRecibido.StringFixed(2), cuenta.SaldoPendiente.StringFixed(2))
			}
			total = cuenta.SaldoPendiente
			cambio = req.MontoRecibido.Sub(total)
		case model.ReciboPagoParcial:
			if !cuenta.SaldoPendiente.IsPositive() {
				return apierror.Precondition("la cuenta no tiene saldo pendiente")
			}
			if req.MontoRecibido.GreaterThan(cuenta.SaldoPendiente) {
				return apierror.Validation("un pago parcial no puede exceder el saldo pendiente %s",
					cuenta.SaldoPendiente.StringFixed(2))
			}
			total = req.MontoRecibido
		case model.ReciboAnticipo:
			total = req.MontoRecibido
		default:
			return apierror.Validation("tipo de recibo desconocido: %s", req.Tipo)
		}

		if err := s.cuentaRepo.AjustarSaldoTx(tx, cuenta.ID, total.Neg()); err != nil {
			return err
		}

		items := make([]model.ReciboItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, model.ReciboItem{
				Descripcion:    it.Descripcion,
				Cantidad:       it.Cantidad,
				PrecioUnitario: it.PrecioUnitario,
				Subtotal:       it.PrecioUnitario.Mul(decimal.NewFromInt(int64(it.Cantidad))),
			})
		}

		rec = model.Recibo{
			Tipo:          req.Tipo,
			CuentaID:      cuenta.ID,
			PacienteID:    cuenta.PacienteID,
			MontoRecibido: req.MontoRecibido,
			Cambio:        cambio,
			MetodoPago:    req.MetodoPago,
			Subtotal:      total,
			Total:         total,
			EmisorID:      actor.ID,
			Items:         items,
		}
		if err := s.EmitirTx(tx, &rec); err != nil {
			return err
		}

		// Net cash in = total: any excess over the balance goes straight
		// back as change.
		metodo := req.MetodoPago
		mov := &model.MovimientoCaja{
			SesionCajaID: sesion.ID,
			Tipo:         model.MovIngreso,
			Monto:        total,
			Concepto:     "pago de cuenta — recibo " + rec.Serie,
			MetodoPago:   &metodo,
			ReferenciaID: &rec.ID,
			CajeroID:     actor.ID,
		}
		return s.cajaRepo.CreateMovimientoTx(tx, mov)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.NotificarEmision(ctx, &rec)
	return reciboToResponse(&rec), nil
}

// ── Cancelar ──────────────────────────────────────────────────────────────────
// Cancellation flags the recibo and excludes it from revenue totals; the cash
// reversal, when owed, travels through a devolución.

func (s *reciboService) Cancelar(ctx context.Context, actor Actor, id uuid.UUID, motivo string) (*dto.ReciboResponse, error) {
	if actor.Rol != model.RolSupervisor && actor.Rol != model.RolAdministrador {
		return nil, apierror.Forbidden("solo un supervisor puede cancelar recibos")
	}

	var rec *model.Recibo
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		rec, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "recibo no encontrado", "")
		}
		if err := fsm.Recibo.Guard("recibo", rec.Estado, "cancelado"); err != nil {
			return err
		}

		now := time.Now()
		cancelador := actor.ID
		rec.Estado = "cancelado"
		rec.CanceladoPor = &cancelador
		rec.CanceladoAt = &now
		rec.MotivoCancelacion = &motivo
		return s.repo.UpdateTx(tx, rec)
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.PublishEvento(ctx, worker.EvReciboCancelado, map[string]interface{}{
			"recibo_id":    rec.ID.String(),
			"serie":        rec.Serie,
			"folio":        rec.Folio,
			"cancelado_por": actor.ID.String(),
			"motivo":       motivo,
		})
	}
	return reciboToResponse(rec), nil
}

// ── Reimprimir ────────────────────────────────────────────────────────────────
// Every reprint is recorded; the PDF carries a reprint watermark.

func (s *reciboService) Reimprimir(ctx context.Context, actor Actor, id uuid.UUID) (*dto.ReciboResponse, error) {
	var rec *model.Recibo
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		rec, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "recibo no encontrado", "")
		}
		if err := fsm.Recibo.Guard("recibo", rec.Estado, "reimpreso"); err != nil {
			return err
		}
		rec.Estado = "reimpreso"
		return s.repo.UpdateTx(tx, rec)
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.dispatcher != nil && rec.PDFPath == nil {
		_ = s.dispatcher.EnqueuePDF(ctx, worker.PDFJobPayload{ReciboID: rec.ID.String()})
	}
	return reciboToResponse(rec), nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *reciboService) Obtener(ctx context.Context, id uuid.UUID) (*dto.ReciboResponse, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repository.MapError(err, "recibo no encontrado", "")
	}
	return reciboToResponse(rec), nil
}

func (s *reciboService) Listar(ctx context.Context, serie string, page, limit int) ([]dto.ReciboResponse, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	recibos, total, err := s.repo.List(ctx, serie, page, limit)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]dto.ReciboResponse, 0, len(recibos))
	for i := range recibos {
		resp = append(resp, *reciboToResponse(&recibos[i]))
	}
	return resp, total, nil
}

func reciboToResponse(r *model.Recibo) *dto.ReciboResponse {
	items := make([]dto.ReciboItemResponse, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, dto.ReciboItemResponse{
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Subtotal:       it.Subtotal,
		})
	}
	cuentaID := r.CuentaID.String()
	pacienteID := r.PacienteID.String()
	return &dto.ReciboResponse{
		ID:                r.ID.String(),
		Serie:             r.Serie,
		Folio:             r.Folio,
		Tipo:              r.Tipo,
		CuentaID:          &cuentaID,
		PacienteID:        &pacienteID,
		MontoRecibido:     r.MontoRecibido,
		Cambio:            r.Cambio,
		MetodoPago:        r.MetodoPago,
		Subtotal:          r.Subtotal,
		Impuesto:          r.Impuesto,
		Total:             r.Total,
		Estado:            r.Estado,
		EmisorID:          r.EmisorID.String(),
		EmitidoAt:         r.EmitidoAt.Format(time.RFC3339),
		MotivoCancelacion: r.MotivoCancelacion,
		PDFPath:           r.PDFPath,
		Items:             items,
	}
}
