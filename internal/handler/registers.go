package handler

import (
	"errors"
	"net/http"

	"fiscalgate/internal/apierror"
	"fiscalgate/internal/dto"
	"fiscalgate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RegistersHandler struct{ svc service.RegisterService }

func NewRegistersHandler(svc service.RegisterService) *RegistersHandler {
	return &RegistersHandler{svc: svc}
}

// Create registers a new cash register configuration (POST /v1/registers).
func (h *RegistersHandler) Create(c *gin.Context) {
	var req dto.CreateRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get returns one register by id (GET /v1/registers/:id).
func (h *RegistersHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid register id"))
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeRegisterError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List returns all configured registers (GET /v1/registers).
func (h *RegistersHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list registers"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update replaces a register's configuration (PUT /v1/registers/:id).
func (h *RegistersHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid register id"))
		return
	}
	var req dto.UpdateRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		writeRegisterError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete removes a register (DELETE /v1/registers/:id).
func (h *RegistersHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid register id"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeRegisterError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeRegisterError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrRegisterNotFound) {
		c.JSON(http.StatusNotFound, apierror.New("register not found"))
		return
	}
	c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
}
