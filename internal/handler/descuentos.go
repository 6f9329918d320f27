package handler

import (
	"net/http"

	"hospicaja/internal/dto"
	"hospicaja/internal/service"

	"github.com/gin-gonic/gin"
)

type DescuentoHandler struct{ svc service.DescuentoService }

func NewDescuentoHandler(svc service.DescuentoService) *DescuentoHandler {
	return &DescuentoHandler{svc: svc}
}

// Solicitar godoc
// @Summary Solicita un descuento sobre una cuenta de paciente
// @Tags descuentos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.SolicitarDescuentoRequest true "Solicitud"
// @Success 201 {object} dto.DescuentoResponse
// @Failure 403 {object} apierror.APIError
// @Router /v1/descuentos [post]
func (h *DescuentoHandler) Solicitar(c *gin.Context) {
	var req dto.SolicitarDescuentoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Solicitar(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DescuentoHandler) Autorizar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Autorizar(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DescuentoHandler) Rechazar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.RechazarDescuentoRequest
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

// Aplicar godoc
// @Summary Aplica un descuento autorizado al saldo de la cuenta
// @Tags descuentos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del descuento"
// @Success 200 {object} dto.DescuentoResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/descuentos/{id}/aplicar [post]
func (h *DescuentoHandler) Aplicar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Aplicar(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DescuentoHandler) Revertir(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Revertir(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DescuentoHandler) Obtener(c *gin.Context) {
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

func (h *DescuentoHandler) Listar(c *gin.Context) {
	page, limit := pagination(c, 20)
	resp, total, err := h.svc.Listar(c.Request.Context(), c.Query("estado"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp, "total": total, "page": page, "limit": limit})
}

// ── Politicas ─────────────────────────────────────────────────────────────────

func (h *DescuentoHandler) CrearPolitica(c *gin.Context) {
	var req dto.CrearPoliticaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearPolitica(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DescuentoHandler) ListarPoliticas(c *gin.Context) {
	soloActivas := c.DefaultQuery("activas", "true") != "false"
	resp, err := h.svc.ListarPoliticas(c.Request.Context(), soloActivas)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
