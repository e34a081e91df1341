package handler

import (
	"errors"
	"net/http"

	"fiscalgate/internal/apierror"
	"fiscalgate/internal/dto"
	"fiscalgate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type CallbackHandler struct{ svc service.ReceiptService }

func NewCallbackHandler(svc service.ReceiptService) *CallbackHandler {
	return &CallbackHandler{svc: svc}
}

// Receive ingests the result the gateway posts once fiscalization finishes
// (POST /v1/checks/callback). Unknown UUIDs get a 404 so the gateway's own
// redelivery keeps retrying; replayed callbacks for settled receipts are a
// silent 200.
func (h *CallbackHandler) Receive(c *gin.Context) {
	var req dto.GatewayCallback
	if !bindAndValidate(c, &req) {
		return
	}

	log.Info().
		Str("uuid", req.UUID).
		Str("status", req.Status).
		Msg("callback: gateway result received")

	if err := h.svc.ApplyCallback(c.Request.Context(), req); err != nil {
		if errors.Is(err, service.ErrReceiptNotFound) {
			c.JSON(http.StatusNotFound, apierror.New("unknown check uuid"))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New("failed to apply callback"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
