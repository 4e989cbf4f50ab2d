package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the consistency boundary for items and status history.
// State changes go through the transition methods; the persisted status
// column is additionally guarded at the storage level for concurrent
// payments, see service.Payments.
type Order struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Status      OrderStatus
	TotalAmount decimal.Decimal
	Items       []OrderItem
	History     []StatusChange
	CreatedAt   time.Time
}

type StatusChange struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Status    OrderStatus
	ChangedAt time.Time
}

func NewOrder(userID uuid.UUID) Order {
	o := Order{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      OrderStatusCreated,
		TotalAmount: decimal.Zero,
		CreatedAt:   time.Now().UTC(),
	}

	o.History = append(o.History, StatusChange{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Status:    OrderStatusCreated,
		ChangedAt: o.CreatedAt,
	})

	return o
}

// RestoreOrder rebuilds an order from persisted rows without re-running
// construction-time validation. Trusted input only: the repository is
// the sole intended caller.
func RestoreOrder(id, userID uuid.UUID, status OrderStatus, totalAmount decimal.Decimal,
	createdAt time.Time, items []OrderItem, history []StatusChange) Order {
	return Order{
		ID:          id,
		UserID:      userID,
		Status:      status,
		TotalAmount: totalAmount,
		Items:       items,
		History:     history,
		CreatedAt:   createdAt,
	}
}

func (o *Order) AddItem(productName string, price Money, quantity int) (OrderItem, error) {
	var zero OrderItem

	if o.Status == OrderStatusCancelled {
		return zero, fmt.Errorf("order[%s]: %w", o.ID, ErrOrderCancelled)
	}

	item, err := NewOrderItem(o.ID, productName, price, quantity)
	if err != nil {
		return zero, fmt.Errorf("NewOrderItem: %w", err)
	}

	// all items of one order settle in a single currency
	if len(o.Items) > 0 && item.Price.Currency != o.Items[0].Price.Currency {
		return zero, fmt.Errorf("currency[%s]: %w", item.Price.Currency, ErrCurrencyMismatch)
	}

	o.Items = append(o.Items, item)
	o.recomputeTotal()

	return item, nil
}

func (o *Order) Pay() error {
	switch o.Status {
	case OrderStatusCreated:
		o.transition(OrderStatusPaid)
		return nil
	case OrderStatusPaid:
		return fmt.Errorf("order[%s]: %w", o.ID, ErrOrderAlreadyPaid)
	case OrderStatusCancelled:
		return fmt.Errorf("order[%s]: %w", o.ID, ErrOrderCancelled)
	default:
		return fmt.Errorf("pay from status[%s]: %w", o.Status, ErrInvalidTransition)
	}
}

// Cancel refuses paid orders: there is no refund flow, so a paid order
// stays paid. Product decision, not an oversight.
func (o *Order) Cancel() error {
	switch o.Status {
	case OrderStatusCreated:
		o.transition(OrderStatusCancelled)
		return nil
	case OrderStatusPaid:
		return fmt.Errorf("order[%s]: %w", o.ID, ErrOrderAlreadyPaid)
	case OrderStatusCancelled:
		return fmt.Errorf("order[%s]: %w", o.ID, ErrOrderCancelled)
	default:
		return fmt.Errorf("cancel from status[%s]: %w", o.Status, ErrInvalidTransition)
	}
}

func (o *Order) Ship() error {
	if o.Status != OrderStatusPaid {
		return fmt.Errorf("ship from status[%s]: %w", o.Status, ErrInvalidTransition)
	}

	o.transition(OrderStatusShipped)
	return nil
}

func (o *Order) Complete() error {
	if o.Status != OrderStatusShipped {
		return fmt.Errorf("complete from status[%s]: %w", o.Status, ErrInvalidTransition)
	}

	o.transition(OrderStatusCompleted)
	return nil
}

// transition records exactly one history entry per successful change.
func (o *Order) transition(status OrderStatus) {
	o.Status = status
	o.History = append(o.History, StatusChange{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Status:    status,
		ChangedAt: time.Now().UTC(),
	})
}

func (o *Order) recomputeTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal().Amount)
	}
	o.TotalAmount = total
}

// Currency returns the settlement currency of the order, pinned by the
// first item. The second result is false for an empty order.
func (o *Order) Currency() (Money, bool) {
	if len(o.Items) == 0 {
		return Money{}, false
	}
	return Money{Amount: o.TotalAmount, Currency: o.Items[0].Price.Currency}, true
}
