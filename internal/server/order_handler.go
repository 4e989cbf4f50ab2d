package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/marketlab/marketplace/internal/domain"
	"github.com/marketlab/marketplace/internal/service"
)

type orderHandler struct {
	orders service.Orders
}

type createOrderRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type addItemRequest struct {
	ProductName string `json:"product_name" binding:"required"`
	Price       string `json:"price" binding:"required"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity" binding:"required"`
}

func (h *orderHandler) create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.orders.Create(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *orderHandler) get(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.orders.Get(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *orderHandler) list(c *gin.Context) {
	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid user id")
			return
		}
		userID = &parsed
	}

	orders, err := h.orders.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(orders, func(o domain.Order, _ int) orderResponse { return toOrderResponse(o) }))
}

func (h *orderHandler) addItem(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	item, err := h.orders.AddItem(c.Request.Context(), orderID, req.ProductName, req.Price, req.Currency, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toItemResponse(item))
}

func (h *orderHandler) pay(c *gin.Context)      { h.transition(c, h.orders.Pay) }
func (h *orderHandler) cancel(c *gin.Context)   { h.transition(c, h.orders.Cancel) }
func (h *orderHandler) ship(c *gin.Context)     { h.transition(c, h.orders.Ship) }
func (h *orderHandler) complete(c *gin.Context) { h.transition(c, h.orders.Complete) }

func (h *orderHandler) history(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	history, err := h.orders.History(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(history, func(s domain.StatusChange, _ int) statusChangeResponse { return toStatusChangeResponse(s) }))
}

func (h *orderHandler) transition(c *gin.Context, op func(ctx context.Context, orderID uuid.UUID) (domain.Order, error)) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := op(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

func orderIDParam(c *gin.Context) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order id")
		return uuid.Nil, false
	}
	return orderID, true
}
