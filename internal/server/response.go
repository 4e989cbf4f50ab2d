package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/marketlab/marketplace/internal/domain"
)

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type orderItemResponse struct {
	ID          string `json:"id"`
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

type statusChangeResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}

type orderResponse struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	Status      string                 `json:"status"`
	TotalAmount string                 `json:"total_amount"`
	CreatedAt   time.Time              `json:"created_at"`
	Items       []orderItemResponse    `json:"items"`
	History     []statusChangeResponse `json:"history"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

func toItemResponse(i domain.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:          i.ID.String(),
		ProductName: i.ProductName,
		Price:       i.Price.Amount.String(),
		Currency:    i.Price.Currency.String(),
		Quantity:    i.Quantity,
		Subtotal:    i.Subtotal().Amount.String(),
	}
}

func toStatusChangeResponse(c domain.StatusChange) statusChangeResponse {
	return statusChangeResponse{
		ID:        c.ID.String(),
		OrderID:   c.OrderID.String(),
		Status:    string(c.Status),
		ChangedAt: c.ChangedAt,
	}
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:          o.ID.String(),
		UserID:      o.UserID.String(),
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount.String(),
		CreatedAt:   o.CreatedAt,
		Items:       lo.Map(o.Items, func(i domain.OrderItem, _ int) orderItemResponse { return toItemResponse(i) }),
		History:     lo.Map(o.History, func(c domain.StatusChange, _ int) statusChangeResponse { return toStatusChangeResponse(c) }),
	}
}

// writeError maps domain failures to transport codes: absent→404,
// conflicts→409, validation and bad transitions→400, the rest→500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmailExists),
		errors.Is(err, domain.ErrOrderAlreadyPaid),
		errors.Is(err, domain.ErrOrderCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
