package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/marketlab/marketplace/internal/domain"
	"github.com/marketlab/marketplace/internal/service"
)

type paymentHandler struct {
	payments service.Payments
}

type payRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
	Mode    string    `json:"mode"`
}

type payResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id"`
	Status  string `json:"status,omitempty"`
}

type paymentHistoryResponse struct {
	OrderID      string                 `json:"order_id"`
	PaymentCount int                    `json:"payment_count"`
	Payments     []statusChangeResponse `json:"payments"`
}

// pay reports a lost race in the body rather than via status code: for
// this endpoint a rejected duplicate payment is a demonstrable outcome,
// not a transport failure.
func (h *paymentHandler) pay(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	mode, err := service.ToPaymentMode(req.Mode)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	status, err := h.payments.Pay(c.Request.Context(), req.OrderID, mode)
	if err != nil {
		c.JSON(http.StatusOK, payResponse{
			Success: false,
			Message: err.Error(),
			OrderID: req.OrderID.String(),
		})
		return
	}

	c.JSON(http.StatusOK, payResponse{
		Success: true,
		Message: "order paid successfully using " + string(mode) + " mode",
		OrderID: req.OrderID.String(),
		Status:  string(status),
	})
}

func (h *paymentHandler) history(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		badRequest(c, "invalid order id")
		return
	}

	history, err := h.payments.PaidHistory(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, paymentHistoryResponse{
		OrderID:      orderID.String(),
		PaymentCount: len(history),
		Payments:     lo.Map(history, func(s domain.StatusChange, _ int) statusChangeResponse { return toStatusChangeResponse(s) }),
	})
}

// testConcurrent fires two simultaneous attempts on independent
// connections, mirroring two rival request handlers.
func (h *paymentHandler) testConcurrent(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	mode, err := service.ToPaymentMode(req.Mode)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	report, err := h.payments.RunConcurrent(c.Request.Context(), req.OrderID, mode, 2)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
