// Package fsm centralizes the estado transition tables for every financial
// entity. Each service asks the table whether a source→target pair is legal
// instead of re-checking estados with ad hoc conditionals at call sites.
package fsm

import "hospicaja/internal/apierror"

// Machine maps each source estado to the set of estados reachable from it.
// Estados absent from the map are terminal.
type Machine map[string][]string

// Can reports whether from→to is a legal transition.
func (m Machine) Can(from, to string) bool {
	for _, t := range m[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves the given estado.
func (m Machine) Terminal(estado string) bool { return len(m[estado]) == 0 }

// Guard returns an invalid_state error when from→to is not in the table,
// nil otherwise. entity names the aggregate for the error message.
func (m Machine) Guard(entity, from, to string) error {
	if m.Can(from, to) {
		return nil
	}
	return apierror.InvalidState("%s: transición ilegal %s → %s", entity, from, to)
}

// ── Transition tables ─────────────────────────────────────────────────────────

// Caja: abierta → arqueo → cerrada. The arqueo (blind count) may be redone
// while the session has not been closed.
var Caja = Machine{
	"abierta": {"arqueo"},
	"arqueo":  {"arqueo", "cerrada"},
}

// Deposito only advances forward; rechazo and cancelación are terminal and
// cancelación is allowed only before the cash physically leaves (preparado).
var Deposito = Machine{
	"preparado":  {"depositado", "rechazado", "cancelado"},
	"depositado": {"confirmado", "rechazado"},
}

// Descuento: aplicado is the only estado allowed to touch the account
// balance; revertido re-adds the amount.
var Descuento = Machine{
	"pendiente":  {"autorizado", "rechazado"},
	"autorizado": {"aplicado", "revertido"},
	"aplicado":   {"revertido"},
}

// Devolucion: cancelable from any pre-processed estado.
var Devolucion = Machine{
	"pendiente_autorizacion": {"autorizada", "rechazada", "cancelada"},
	"autorizada":             {"procesada", "cancelada"},
}

// Recibo never transitions back; cancellation flags, never deletes.
var Recibo = Machine{
	"emitido":   {"reimpreso", "cancelado"},
	"reimpreso": {"reimpreso", "cancelado"},
}
