package handler

import (
	"errors"
	"net"
	"net/http"
	"strconv"

	"fiscalgate/internal/apierror"
	"fiscalgate/internal/dto"
	"fiscalgate/internal/fiscal"
	"fiscalgate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChecksHandler struct{ svc service.ReceiptService }

func NewChecksHandler(svc service.ReceiptService) *ChecksHandler { return &ChecksHandler{svc: svc} }

// RegisterCheck registers a sale or refund check synchronously
// (POST /v1/registers/:id/checks).
func (h *ChecksHandler) RegisterCheck(c *gin.Context) {
	registerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid register id"))
		return
	}
	var req dto.RegisterCheckRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.RegisterSale(c.Request.Context(), registerID, req, callbackFromRequest(c))
	if err != nil {
		writeCheckError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterCheckAsync accepts a check and defers the gateway call to the
// worker pool (POST /v1/registers/:id/checks/async). Payload defects still
// fail synchronously.
func (h *ChecksHandler) RegisterCheckAsync(c *gin.Context) {
	registerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid register id"))
		return
	}
	var req dto.RegisterCheckRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.EnqueueSale(c.Request.Context(), registerID, req, callbackFromRequest(c))
	if err != nil {
		writeCheckError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// RegisterCorrection registers a correction check
// (POST /v1/registers/:id/corrections).
func (h *ChecksHandler) RegisterCorrection(c *gin.Context) {
	registerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid register id"))
		return
	}
	var req dto.CorrectionCheckRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.RegisterCorrection(c.Request.Context(), registerID, req, callbackFromRequest(c))
	if err != nil {
		writeCheckError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetCheck returns a receipt by its gateway UUID, polling the report endpoint
// first when fiscalization is still outstanding (GET /v1/checks/:uuid).
func (h *ChecksHandler) GetCheck(c *gin.Context) {
	resp, err := h.svc.PollStatus(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		writeCheckError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeCheckError maps service-layer failures onto HTTP statuses.
func writeCheckError(c *gin.Context, err error) {
	var verr *service.CheckValidationError
	if errors.As(err, &verr) {
		fields := make(map[string]string, len(verr.Errors))
		for _, ve := range verr.Errors {
			fields[ve.Code] = ve.Message
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return
	}

	var uerr *fiscal.UnmappedCodeError
	if errors.As(err, &uerr) {
		c.JSON(http.StatusBadRequest, apierror.New(uerr.Error()))
		return
	}

	var aerr *fiscal.AuthError
	if errors.As(err, &aerr) {
		c.JSON(http.StatusBadGateway, apierror.New("fiscal gateway rejected the register credentials"))
		return
	}

	switch {
	case errors.Is(err, service.ErrRegisterNotFound):
		c.JSON(http.StatusNotFound, apierror.New("register not found"))
	case errors.Is(err, service.ErrReceiptNotFound):
		c.JSON(http.StatusNotFound, apierror.New("check not found"))
	default:
		c.JSON(http.StatusBadGateway, apierror.New("fiscal gateway unavailable: "+err.Error()))
	}
}

// callbackFromRequest derives the callback address the gateway will post
// results to from the incoming request's scheme, host and port.
func callbackFromRequest(c *gin.Context) fiscal.Callback {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	host := c.Request.Host
	port := 0
	if h, p, err := net.SplitHostPort(c.Request.Host); err == nil {
		host = h
		port, _ = strconv.Atoi(p)
	}

	return fiscal.Callback{Scheme: scheme, Host: host, Port: port}
}
