package service

import (
	"context"
	"fmt"
	"time"

	"hospicaja/internal/apierror"
	"hospicaja/internal/dto"
	"hospicaja/internal/fsm"
	"hospicaja/internal/infra"
	"hospicaja/internal/model"
	"hospicaja/internal/repository"
	"hospicaja/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RestockClient re-enters returned goods into hospital stock. Satisfied by
// infra.InventarioClient; faked in unit tests.
type RestockClient interface {
	Restock(ctx context.Context, payload infra.RestockPayload) (*infra.RestockResponse, error)
}

type DevolucionService interface {
	Crear(ctx context.Context, actor Actor, req dto.CrearDevolucionRequest) (*dto.DevolucionResponse, error)
	Autorizar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DevolucionResponse, error)
	Rechazar(ctx context.Context, actor Actor, id uuid.UUID, motivo string) (*dto.DevolucionResponse, error)
	// Procesar pays the refund out of an open caja and emits the reembolso
	// recibo in the same transaction.
	Procesar(ctx context.Context, actor Actor, id uuid.UUID, req dto.ProcesarDevolucionRequest) (*dto.DevolucionResponse, error)
	Cancelar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DevolucionResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.DevolucionResponse, error)
	Listar(ctx context.Context, estado string, page, limit int) ([]dto.DevolucionResponse, int64, error)

	CrearMotivo(ctx context.Context, actor Actor, req dto.CrearMotivoRequest) (*dto.MotivoDevolucionResponse, error)
	ListarMotivos(ctx context.Context) ([]dto.MotivoDevolucionResponse, error)
}

type devolucionService struct {
	repo       repository.DevolucionRepository
	cuentaRepo repository.CuentaRepository
	cajaRepo   repository.CajaRepository
	recibos    ReciboService
	restock    RestockClient
	cb         *infra.CircuitBreaker
	dispatcher *worker.Dispatcher
}

func NewDevolucionService(
	repo repository.DevolucionRepository,
	cuentaRepo repository.CuentaRepository,
	cajaRepo repository.CajaRepository,
	recibos ReciboService,
	restock RestockClient,
	cb *infra.CircuitBreaker,
	dispatcher *worker.Dispatcher,
) DevolucionService {
	return &devolucionService{
		repo:       repo,
		cuentaRepo: cuentaRepo,
		cajaRepo:   cajaRepo,
		recibos:    recibos,
		restock:    restock,
		cb:         cb,
		dispatcher: dispatcher,
	}
}

// ── Crear ─────────────────────────────────────────────────────────────────────
// The refund amount derives from the item lines (or the account total for a
// cuenta_completa return) and is frozen on creation. Motives that do not
// require authorization skip straight to autorizada.

func (s *devolucionService) Crear(ctx context.Context, actor Actor, req dto.CrearDevolucionRequest) (*dto.DevolucionResponse, error) {
	cuentaID, err := uuid.Parse(req.CuentaID)
	if err != nil {
		return nil, apierror.Validation("cuenta_id inválido")
	}
	motivoID, err := uuid.Parse(req.MotivoID)
	if err != nil {
		return nil, apierror.Validation("motivo_id inválido")
	}

	motivo, err := s.repo.FindMotivoByID(ctx, motivoID)
	if err != nil {
		return nil, repository.MapError(err, "motivo de devolución no encontrado", "")
	}
	if !motivo.Activo {
		return nil, apierror.Precondition("el motivo %q está inactivo", motivo.Codigo)
	}

	cuenta, err := s.cuentaRepo.FindByID(ctx, cuentaID)
	if err != nil {
		return nil, repository.MapError(err, "cuenta de paciente no encontrada", "")
	}

	if req.Tipo == model.DevProducto && len(req.Items) == 0 {
		return nil, apierror.Validation("una devolución de producto requiere al menos un item")
	}

	items := make([]model.DevolucionItem, 0, len(req.Items))
	itemsTotal := decimal.Zero
	for i, it := range req.Items {
		if it.CantidadDevuelta > it.CantidadOriginal {
			return nil, apierror.Validation(
				"item %d: la cantidad devuelta (%d) excede la cantidad original (%d)",
				i+1, it.CantidadDevuelta, it.CantidadOriginal)
		}
		var productoID *uuid.UUID
		if it.ProductoID != nil {
			pid, err := uuid.Parse(*it.ProductoID)
			if err != nil {
				return nil, apierror.Validation("item %d: producto_id inválido", i+1)
			}
			productoID = &pid
		}
		subtotal := it.PrecioUnitario.Mul(decimal.NewFromInt(int64(it.CantidadDevuelta)))
		itemsTotal = itemsTotal.Add(subtotal)
		items = append(items, model.DevolucionItem{
			ProductoID:        productoID,
			Descripcion:       it.Descripcion,
			CantidadOriginal:  it.CantidadOriginal,
			CantidadDevuelta:  it.CantidadDevuelta,
			PrecioUnitario:    it.PrecioUnitario,
			Subtotal:          subtotal,
			CondicionFisica:   it.CondicionFisica,
			RegresaInventario: it.RegresaInventario,
		})
	}

	var monto decimal.Decimal
	switch {
	case req.MontoReembolso != nil:
		monto = *req.MontoReembolso
		if len(items) > 0 && monto.GreaterThan(itemsTotal) {
			return nil, apierror.Validation("el reembolso %s excede el total de los items devueltos %s",
				monto.StringFixed(2), itemsTotal.StringFixed(2))
		}
	case req.Tipo == model.DevCuentaCompleta:
		monto = cuenta.SaldoPendiente
	default:
		monto = itemsTotal
	}
	if !monto.IsPositive() {
		return nil, apierror.Validation("el monto a reembolsar debe ser mayor que cero")
	}

	metodo := req.MetodoPago
	dev := &model.Devolucion{
		CuentaID:       cuenta.ID,
		Tipo:           req.Tipo,
		MotivoID:       motivo.ID,
		Estado:         "pendiente_autorizacion",
		MontoReembolso: monto,
		SolicitanteID:  actor.ID,
		MetodoPago:     &metodo,
		Observaciones:  req.Observaciones,
		Items:          items,
	}
	if !motivo.RequiereAutorizacion {
		dev.Estado = "autorizada"
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.CreateTx(tx, dev)
	})
	if txErr != nil {
		return nil, txErr
	}
	dev.Motivo = motivo
	return devolucionToResponse(dev), nil
}

// ── Autorizar / Rechazar ──────────────────────────────────────────────────────

func (s *devolucionService) Autorizar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DevolucionResponse, error) {
	return s.resolver(ctx, actor, id, "autorizada", nil)
}

func (s *devolucionService) Rechazar(ctx context.Context, actor Actor, id uuid.UUID, motivo string) (*dto.DevolucionResponse, error) {
	return s.resolver(ctx, actor, id, "rechazada", &motivo)
}

func (s *devolucionService) resolver(ctx context.Context, actor Actor, id uuid.UUID, destino string, motivo *string) (*dto.DevolucionResponse, error) {
	if actor.Rol != model.RolSupervisor && actor.Rol != model.RolAdministrador {
		return nil, apierror.Forbidden("solo un supervisor puede resolver devoluciones")
	}

	var dev *model.Devolucion
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		dev, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "devolución no encontrada", "")
		}
		if err := fsm.Devolucion.Guard("devolución", dev.Estado, destino); err != nil {
			return err
		}
		if actor.ID == dev.SolicitanteID {
			return apierror.Authorization("el solicitante no puede resolver su propia devolución")
		}

		aprobador := actor.ID
		dev.Estado = destino
		dev.AprobadorID = &aprobador
		dev.MotivoRechazo = motivo
		return s.repo.UpdateTx(tx, dev)
	})
	if txErr != nil {
		return nil, txErr
	}
	return s.Obtener(ctx, dev.ID)
}

// ── Procesar ──────────────────────────────────────────────────────────────────
// One transaction: refund leaves the till as an egreso, the charge reversal
// drops the account balance, the reembolso recibo takes its folio, restock of
// good-condition items reaches inventory, and the devolución reaches
// procesada. A restock failure aborts the whole refund — the devolución stays
// autorizada and can be re-processed once inventory recovers.

func (s *devolucionService) Procesar(ctx context.Context, actor Actor, id uuid.UUID, req dto.ProcesarDevolucionRequest) (*dto.DevolucionResponse, error) {
	sesionID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		return nil, apierror.Validation("sesion_caja_id inválido")
	}

	var dev *model.Devolucion
	var rec model.Recibo
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		dev, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "devolución no encontrada", "")
		}
		if err := fsm.Devolucion.Guard("devolución", dev.Estado, "procesada"); err != nil {
			return err
		}

		sesion, err := sesionAbiertaTx(s.cajaRepo, tx, sesionID)
		if err != nil {
			return err
		}

		metodo := "efectivo"
		if dev.MetodoPago != nil {
			metodo = *dev.MetodoPago
		}
		if metodo == "efectivo" {
			disponible, err := s.cajaRepo.SumMovimientosTx(tx, sesion.ID)
			if err != nil {
				return err
			}
			if dev.MontoReembolso.GreaterThan(disponible) {
				return apierror.Precondition("el reembolso %s excede el efectivo disponible en caja %s",
					dev.MontoReembolso.StringFixed(2), disponible.StringFixed(2))
			}
		}

		cuenta, err := s.cuentaRepo.FindByIDForUpdate(tx, dev.CuentaID)
		if err != nil {
			return repository.MapError(err, "cuenta de paciente no encontrada", "")
		}

		items, err := s.repo.ListItemsTx(tx, dev.ID)
		if err != nil {
			return err
		}
		if err := s.restockTx(ctx, dev, items); err != nil {
			return err
		}
		recItems := make([]model.ReciboItem, 0, len(items))
		for _, it := range items {
			recItems = append(recItems, model.ReciboItem{
				Descripcion:    it.Descripcion,
				Cantidad:       it.CantidadDevuelta,
				PrecioUnitario: it.PrecioUnitario,
				Subtotal:       it.Subtotal,
			})
		}

		devRef := dev.ID
		rec = model.Recibo{
			Tipo:           model.ReciboReembolso,
			CuentaID:       cuenta.ID,
			PacienteID:     cuenta.PacienteID,
			EventoOrigenID: &devRef,
			MontoRecibido:  dev.MontoReembolso,
			MetodoPago:     metodo,
			Subtotal:       dev.MontoReembolso,
			Total:          dev.MontoReembolso,
			EmisorID:       actor.ID,
			Items:          recItems,
		}
		if err := s.recibos.EmitirTx(tx, &rec); err != nil {
			return err
		}

		mov := &model.MovimientoCaja{
			SesionCajaID: sesion.ID,
			Tipo:         model.MovEgreso,
			Monto:        dev.MontoReembolso,
			Concepto:     fmt.Sprintf("reembolso devolución #%d", dev.Numero),
			MetodoPago:   &metodo,
			ReferenciaID: &devRef,
			CajeroID:     actor.ID,
		}
		if err := s.cajaRepo.CreateMovimientoTx(tx, mov); err != nil {
			return err
		}

		// The refund reverses the original charge: the outstanding balance
		// drops together with the cash, in the same transaction.
		if err := s.cuentaRepo.AjustarSaldoTx(tx, cuenta.ID, dev.MontoReembolso.Neg()); err != nil {
			return err
		}

		now := time.Now()
		procesador := actor.ID
		dev.Estado = "procesada"
		dev.ProcesadorID = &procesador
		dev.ProcesadaAt = &now
		return s.repo.UpdateTx(tx, dev)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.recibos.NotificarEmision(ctx, &rec)

	if s.dispatcher != nil {
		_ = s.dispatcher.PublishEvento(ctx, worker.EvDevolucionProcesada, map[string]interface{}{
			"devolucion_id": dev.ID.String(),
			"cuenta_id":     dev.CuentaID.String(),
			"monto":         dev.MontoReembolso.StringFixed(2),
			"procesado_por": actor.ID.String(),
		})
	}
	return s.Obtener(ctx, dev.ID)
}

// restockTx re-enters good-condition items flagged for restock, inside the
// processing transaction: a rejected or unreachable inventory aborts the
// refund so stock and cash never diverge.
func (s *devolucionService) restockTx(ctx context.Context, dev *model.Devolucion, items []model.DevolucionItem) error {
	if s.restock == nil {
		return nil
	}

	var restockables []infra.RestockItem
	for _, it := range items {
		if it.RegresaInventario && it.CondicionFisica == model.CondicionBuena && it.ProductoID != nil {
			restockables = append(restockables, infra.RestockItem{
				ProductoID: it.ProductoID.String(),
				Cantidad:   it.CantidadDevuelta,
			})
		}
	}
	if len(restockables) == 0 {
		return nil
	}

	payload := infra.RestockPayload{DevolucionID: dev.ID.String(), Items: restockables}
	call := func() error {
		_, err := s.restock.Restock(ctx, payload)
		return err
	}
	var err error
	if s.cb != nil {
		err = s.cb.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("devolucion_id", dev.ID.String()).
			Int("items", len(restockables)).
			Msg("devolucion: restock rechazado, se aborta el procesamiento")
		return apierror.Retryable("inventario no disponible, reintente el procesamiento: %v", err)
	}
	return nil
}

// ── Cancelar ──────────────────────────────────────────────────────────────────

func (s *devolucionService) Cancelar(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DevolucionResponse, error) {
	var dev *model.Devolucion
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		dev, err = s.repo.FindByIDForUpdate(tx, id)
		if err != nil {
			return repository.MapError(err, "devolución no encontrada", "")
		}
		if err := fsm.Devolucion.Guard("devolución", dev.Estado, "cancelada"); err != nil {
			return err
		}
		if actor.ID != dev.SolicitanteID && actor.Rol != model.RolSupervisor && actor.Rol != model.RolAdministrador {
			return apierror.Forbidden("solo el solicitante o un supervisor puede cancelar la devolución")
		}

		dev.Estado = "cancelada"
		return s.repo.UpdateTx(tx, dev)
	})
	if txErr != nil {
		return nil, txErr
	}
	return s.Obtener(ctx, dev.ID)
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *devolucionService) Obtener(ctx context.Context, id uuid.UUID) (*dto.DevolucionResponse, error) {
	dev, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repository.MapError(err, "devolución no encontrada", "")
	}
	return devolucionToResponse(dev), nil
}

func (s *devolucionService) Listar(ctx context.Context, estado string, page, limit int) ([]dto.DevolucionResponse, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	devoluciones, total, err := s.repo.List(ctx, estado, page, limit)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]dto.DevolucionResponse, 0, len(devoluciones))
	for i := range devoluciones {
		resp = append(resp, *devolucionToResponse(&devoluciones[i]))
	}
	return resp, total, nil
}

// ── Motivos ───────────────────────────────────────────────────────────────────

func (s *devolucionService) CrearMotivo(ctx context.Context, actor Actor, req dto.CrearMotivoRequest) (*dto.MotivoDevolucionResponse, error) {
	if actor.Rol != model.RolAdministrador {
		return nil, apierror.Forbidden("solo un administrador puede crear motivos de devolución")
	}
	motivo := &model.MotivoDevolucion{
		Codigo:               req.Codigo,
		Categoria:            req.Categoria,
		Descripcion:          req.Descripcion,
		RequiereAutorizacion: req.RequiereAutorizacion,
		Activo:               true,
	}
	if err := s.repo.CreateMotivo(ctx, motivo); err != nil {
		return nil, repository.MapError(err, "", "ya existe un motivo con ese código")
	}
	resp := motivoToResponse(motivo)
	return &resp, nil
}

func (s *devolucionService) ListarMotivos(ctx context.Context) ([]dto.MotivoDevolucionResponse, error) {
	motivos, err := s.repo.ListMotivos(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.MotivoDevolucionResponse, 0, len(motivos))
	for i := range motivos {
		resp = append(resp, motivoToResponse(&motivos[i]))
	}
	return resp, nil
}

func devolucionToResponse(d *model.Devolucion) *dto.DevolucionResponse {
	items := make([]dto.DevolucionItemResponse, 0, len(d.Items))
	for _, it := range d.Items {
		item := dto.DevolucionItemResponse{
			ID:                it.ID.String(),
			Descripcion:       it.Descripcion,
			CantidadOriginal:  it.CantidadOriginal,
			CantidadDevuelta:  it.CantidadDevuelta,
			PrecioUnitario:    it.PrecioUnitario,
			Subtotal:          it.Subtotal,
			CondicionFisica:   it.CondicionFisica,
			RegresaInventario: it.RegresaInventario,
		}
		if it.ProductoID != nil {
			v := it.ProductoID.String()
			item.ProductoID = &v
		}
		items = append(items, item)
	}

	metodo := ""
	if d.MetodoPago != nil {
		metodo = *d.MetodoPago
	}
	motivoCodigo := ""
	if d.Motivo != nil {
		motivoCodigo = d.Motivo.Codigo
	}
	resp := &dto.DevolucionResponse{
		ID:             d.ID.String(),
		Numero:         d.Numero,
		CuentaID:       d.CuentaID.String(),
		Tipo:           d.Tipo,
		MotivoCodigo:   motivoCodigo,
		Estado:         d.Estado,
		MontoReembolso: d.MontoReembolso,
		MetodoPago:     metodo,
		SolicitanteID:  d.SolicitanteID.String(),
		Items:          items,
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
	}
	if d.AprobadorID != nil {
		v := d.AprobadorID.String()
		resp.AprobadorID = &v
	}
	if d.ProcesadorID != nil {
		v := d.ProcesadorID.String()
		resp.ProcesadorID = &v
	}
	if d.ProcesadaAt != nil {
		v := d.ProcesadaAt.Format(time.RFC3339)
		resp.ProcesadaAt = &v
	}
	return resp
}

func motivoToResponse(m *model.MotivoDevolucion) dto.MotivoDevolucionResponse {
	return dto.MotivoDevolucionResponse{
		ID:                   m.ID.String(),
		Codigo:               m.Codigo,
		Categoria:            m.Categoria,
		Descripcion:          m.Descripcion,
		RequiereAutorizacion: m.RequiereAutorizacion,
	}
}
