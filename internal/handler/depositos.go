package handler

import (
	"net/http"
	"time"

	"hospicaja/internal/apierror"
	"hospicaja/internal/dto"
	"hospicaja/internal/service"

	"github.com/gin-gonic/gin"
)

type DepositoHandler struct{ svc service.DepositoService }

func NewDepositoHandler(svc service.DepositoService) *DepositoHandler {
	return &DepositoHandler{svc: svc}
}

// Preparar godoc
// @Summary Prepara un deposito bancario con efectivo de caja
// @Tags depositos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.PrepararDepositoRequest true "Datos del deposito"
// @Success 201 {object} dto.DepositoResponse
// @Failure 412 {object} apierror.APIError
// @Router /v1/depositos [post]
func (h *DepositoHandler) Preparar(c *gin.Context) {
	var req dto.PrepararDepositoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Preparar(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// MarcarDepositado registers the bank slip once the money physically left.
func (h *DepositoHandler) MarcarDepositado(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.MarcarDepositadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.MarcarDepositado(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Confirmar godoc
// @Summary Confirma un deposito contra el estado de cuenta bancario
// @Tags depositos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del deposito"
// @Success 200 {object} dto.DepositoResponse
// @Failure 403 {object} apierror.APIError
// @Router /v1/depositos/{id}/confirmar [post]
func (h *DepositoHandler) Confirmar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Confirmar(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Rechazar rejects a deposit; cash returns to the source session if still open.
func (h *DepositoHandler) Rechazar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.RechazarDepositoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Rechazar(c.Request.Context(), actorFrom(c), id, req.Motivo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DepositoHandler) Cancelar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Cancelar(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DepositoHandler) Obtener(c *gin.Context) {
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

func (h *DepositoHandler) Listar(c *gin.Context) {
	page, limit := pagination(c, 20)
	resp, total, err := h.svc.Listar(c.Request.Context(), c.Query("estado"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp, "total": total, "page": page, "limit": limit})
}

// Conciliacion godoc
// @Summary Concilia lo recaudado contra lo depositado en un rango de fechas
// @Tags depositos
// @Produce json
// @Security BearerAuth
// @Param desde query string true "Fecha inicial YYYY-MM-DD"
// @Param hasta query string true "Fecha final YYYY-MM-DD"
// @Success 200 {object} dto.ConciliacionResponse
// @Router /v1/depositos/conciliacion [get]
func (h *DepositoHandler) Conciliacion(c *gin.Context) {
	desde, err := time.Parse("2006-01-02", c.Query("desde"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("desde: fecha inválida, use YYYY-MM-DD"))
		return
	}
	hasta, err := time.Parse("2006-01-02", c.Query("hasta"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("hasta: fecha inválida, use YYYY-MM-DD"))
		return
	}
	// hasta is inclusive: extend to end of day
	hasta = hasta.Add(24*time.Hour - time.Nanosecond)

	resp, err := h.svc.Conciliacion(c.Request.Context(), desde, hasta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
