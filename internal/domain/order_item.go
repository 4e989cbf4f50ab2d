package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductName string
	Price       Money
	Quantity    int
}

func NewOrderItem(orderID uuid.UUID, productName string, price Money, quantity int) (OrderItem, error) {
	var item OrderItem

	if strings.TrimSpace(productName) == "" {
		return item, ErrInvalidProduct
	}
	if quantity <= 0 {
		return item, fmt.Errorf("got %d: %w", quantity, ErrInvalidQuantity)
	}
	if price.Amount.IsNegative() {
		return item, fmt.Errorf("got %s: %w", price.Amount, ErrInvalidPrice)
	}

	return OrderItem{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductName: productName,
		Price:       price,
		Quantity:    quantity,
	}, nil
}

func (i OrderItem) Subtotal() Money {
	return i.Price.Mul(i.Quantity)
}
