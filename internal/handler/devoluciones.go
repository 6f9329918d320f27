package handler

import (
	"net/http"

	"hospicaja/internal/dto"
	"hospicaja/internal/service"

	"github.com/gin-gonic/gin"
)

type DevolucionHandler struct{ svc service.DevolucionService }

func NewDevolucionHandler(svc service.DevolucionService) *DevolucionHandler {
	return &DevolucionHandler{svc: svc}
}

// Crear godoc
// @Summary Registra una solicitud de devolucion
// @Tags devoluciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearDevolucionRequest true "Solicitud"
// @Success 201 {object} dto.DevolucionResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/devoluciones [post]
func (h *DevolucionHandler) Crear(c *gin.Context) {
	var req dto.CrearDevolucionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DevolucionHandler) Autorizar(c *gin.Context) {
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

func (h *DevolucionHandler) Rechazar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.RechazarDevolucionRequest
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

// Procesar godoc
// @Summary Procesa la devolucion pagando el reembolso desde una caja abierta
// @Tags devoluciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la devolucion"
// @Param body body dto.ProcesarDevolucionRequest true "Sesion de caja pagadora"
// @Success 200 {object} dto.DevolucionResponse
// @Failure 412 {object} apierror.APIError
// @Router /v1/devoluciones/{id}/procesar [post]
func (h *DevolucionHandler) Procesar(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.ProcesarDevolucionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Procesar(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DevolucionHandler) Cancelar(c *gin.Context) {
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

func (h *DevolucionHandler) Obtener(c *gin.Context) {
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

func (h *DevolucionHandler) Listar(c *gin.Context) {
	page, limit := pagination(c, 20)
	resp, total, err := h.svc.Listar(c.Request.Context(), c.Query("estado"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp, "total": total, "page": page, "limit": limit})
}

// ── Motivos ───────────────────────────────────────────────────────────────────

func (h *DevolucionHandler) CrearMotivo(c *gin.Context) {
	var req dto.CrearMotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearMotivo(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DevolucionHandler) ListarMotivos(c *gin.Context) {
	resp, err := h.svc.ListarMotivos(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
