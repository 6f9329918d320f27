package handler

import (
	"net/http"

	"hospicaja/internal/dto"
	"hospicaja/internal/service"

	"github.com/gin-gonic/gin"
)

type ReciboHandler struct{ svc service.ReciboService }

func NewReciboHandler(svc service.ReciboService) *ReciboHandler { return &ReciboHandler{svc: svc} }

// PagarCuenta godoc
// @Summary Cobra un pago sobre una cuenta de paciente y emite el recibo
// @Tags recibos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.PagarCuentaRequest true "Pago"
// @Success 201 {object} dto.ReciboResponse
// @Failure 412 {object} apierror.APIError
// @Router /v1/recibos/pagar [post]
func (h *ReciboHandler) PagarCuenta(c *gin.Context) {
	var req dto.PagarCuentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.PagarCuenta(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cancelar godoc
// @Summary Cancela un recibo emitido (el folio queda consumido)
// @Tags recibos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del recibo"
// @Param body body dto.CancelarReciboRequest true "Motivo de cancelacion"
// @Success 200 {object} dto.ReciboResponse
// @Failure 403 {object} apierror.APIError
// @Router /v1/recibos/{id}/cancelar [post]
func (h *ReciboHandler) Cancelar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.CancelarReciboRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cancelar(c.Request.Context(), actorFrom(c), id, req.Motivo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reimprimir re-renders the PDF and flags the recibo as a reprint.
func (h *ReciboHandler) Reimprimir(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Reimprimir(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReciboHandler) Obtener(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReciboHandler) Listar(c *gin.Context) {
	page, limit := pagination(c, 20)
	resp, total, err := h.svc.Listar(c.Request.Context(), c.Query("serie"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp, "total": total, "page": page, "limit": limit})
}
