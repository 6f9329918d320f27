package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransiciones(t *testing.T) {
	cases := []struct {
		name    string
		machine Machine
		from    string
		to      string
		legal   bool
	}{
		{"caja abre a arqueo", Caja, "abierta", "arqueo", true},
		{"caja re-declara arqueo", Caja, "arqueo", "arqueo", true},
		{"caja cierra desde arqueo", Caja, "arqueo", "cerrada", true},
		{"caja no cierra sin arqueo", Caja, "abierta", "cerrada", false},
		{"caja cerrada es terminal", Caja, "cerrada", "abierta", false},

		{"deposito avanza a depositado", Deposito, "preparado", "depositado", true},
		{"deposito cancelable solo preparado", Deposito, "depositado", "cancelado", false},
		{"deposito confirmado es terminal", Deposito, "confirmado", "rechazado", false},
		{"deposito rechazable tras boleta", Deposito, "depositado", "rechazado", true},

		{"descuento requiere autorizacion previa", Descuento, "pendiente", "aplicado", false},
		{"descuento aplicado reversible", Descuento, "aplicado", "revertido", true},
		{"descuento rechazado es terminal", Descuento, "rechazado", "autorizado", false},

		{"devolucion procesable tras autorizar", Devolucion, "autorizada", "procesada", true},
		{"devolucion no procesable pendiente", Devolucion, "pendiente_autorizacion", "procesada", false},
		{"devolucion procesada es terminal", Devolucion, "procesada", "cancelada", false},

		{"recibo reimprimible varias veces", Recibo, "reimpreso", "reimpreso", true},
		{"recibo cancelado es terminal", Recibo, "cancelado", "emitido", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.legal, tc.machine.Can(tc.from, tc.to))
			err := tc.machine.Guard("entidad", tc.from, tc.to)
			if tc.legal {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, Caja.Terminal("cerrada"))
	assert.False(t, Caja.Terminal("arqueo"))
	assert.True(t, Deposito.Terminal("confirmado"))
	assert.True(t, Devolucion.Terminal("procesada"))
	assert.True(t, Recibo.Terminal("cancelado"))
}
