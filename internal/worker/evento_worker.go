package worker

// evento_worker.go
// Consumes domain events from QueueEventos. Every event is logged for the
// audit trail; the events that need a human in the loop (over-threshold cash
// discrepancies, rejected deposits) additionally fan out a supervisor email.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Domain event names published by the services.
const (
	EvCajaAbierta         = "caja.abierta"
	EvCajaCerrada         = "caja.cerrada"
	EvDepositoConfirmado  = "deposito.confirmado"
	EvDepositoRechazado   = "deposito.rechazado"
	EvDescuentoAplicado   = "descuento.aplicado"
	EvDescuentoRevertido  = "descuento.revertido"
	EvDevolucionProcesada = "devolucion.procesada"
	EvReciboEmitido       = "recibo.emitido"
	EvReciboCancelado     = "recibo.cancelado"
)

// EventoPayload is the envelope for every domain event on QueueEventos.
type EventoPayload struct {
	Evento     string                 `json:"evento"`
	Data       map[string]interface{} `json:"data"`
	OcurridoAt string                 `json:"ocurrido_at"` // ISO 8601
}

// EventoWorker logs domain events and escalates the ones that require
// supervisor attention.
type EventoWorker struct {
	dispatcher      *Dispatcher
	supervisorEmail string
}

func NewEventoWorker(dispatcher *Dispatcher, supervisorEmail string) *EventoWorker {
	return &EventoWorker{dispatcher: dispatcher, supervisorEmail: supervisorEmail}
}

func (w *EventoWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload EventoPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("evento_worker: invalid payload")
		return
	}

	log.Info().
		Str("evento", payload.Evento).
		Interface("data", payload.Data).
		Str("ocurrido_at", payload.OcurridoAt).
		Msg("evento_worker: domain event")

	switch payload.Evento {
	case EvCajaCerrada:
		if excedido, ok := payload.Data["desvio_excedido"].(bool); ok && excedido {
			w.notifySupervisor(ctx,
				"Cierre de caja con desvío fuera de umbral",
				fmt.Sprintf("Sesión %v cerró con desvío %v. Justificación: %v",
					payload.Data["sesion_caja_id"], payload.Data["desvio"], payload.Data["justificacion"]))
		}
	case EvDepositoRechazado:
		w.notifySupervisor(ctx,
			"Depósito bancario rechazado",
			fmt.Sprintf("Depósito #%v rechazado: %v",
				payload.Data["numero_deposito"], payload.Data["motivo"]))
	}
}

func (w *EventoWorker) notifySupervisor(ctx context.Context, subject, body string) {
	if w.supervisorEmail == "" || w.dispatcher == nil {
		return
	}
	job := EmailJobPayload{ToEmail: w.supervisorEmail, Subject: subject, Body: body}
	if err := w.dispatcher.EnqueueEmail(ctx, job); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("evento_worker: failed to enqueue supervisor email")
	}
}
