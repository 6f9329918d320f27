package handler

import (
	"net/http"

	"hospicaja/internal/dto"
	"hospicaja/internal/service"

	"github.com/gin-gonic/gin"
)

type CuentaHandler struct{ svc service.CuentaService }

func NewCuentaHandler(svc service.CuentaService) *CuentaHandler { return &CuentaHandler{svc: svc} }

func (h *CuentaHandler) Crear(c *gin.Context) {
	var req dto.CrearCuentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CuentaHandler) Obtener(c *gin.Context) {
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
