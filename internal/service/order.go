package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/marketlab/marketplace/internal/domain"
	"github.com/marketlab/marketplace/internal/port"
)

// DefaultCurrency applies when a client omits the currency of an item.
const DefaultCurrency = "USD"

type Orders interface {
	Create(ctx context.Context, userID uuid.UUID) (domain.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (domain.Order, error)

	AddItem(ctx context.Context, orderID uuid.UUID, productName, price, currencyCode string, quantity int) (domain.OrderItem, error)

	// Pay drives the in-memory aggregate through load-mutate-save. It
	// enforces the sequential invariant only: two independent callers
	// can still race on the load. Concurrent callers belong on
	// Payments.Pay.
	Pay(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	Ship(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	Complete(ctx context.Context, orderID uuid.UUID) (domain.Order, error)

	List(ctx context.Context, userID *uuid.UUID) ([]domain.Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]domain.StatusChange, error)
}

type orderService struct {
	orders port.OrderRepository
	users  port.UserRepository
	logger *zap.Logger
}

func NewOrders(orders port.OrderRepository, users port.UserRepository, logger *zap.Logger) Orders {
	return &orderService{orders: orders, users: users, logger: logger}
}

func (s *orderService) Create(ctx context.Context, userID uuid.UUID) (domain.Order, error) {
	var o domain.Order

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return o, fmt.Errorf("users.FindByID: %w", err)
	}

	order := domain.NewOrder(userID)
	if err := s.orders.Save(ctx, order); err != nil {
		return o, fmt.Errorf("orders.Save: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()))

	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders.FindByID: %w", err)
	}
	return order, nil
}

func (s *orderService) AddItem(ctx context.Context, orderID uuid.UUID, productName, price, currencyCode string, quantity int) (domain.OrderItem, error) {
	var zero domain.OrderItem

	amount, err := decimal.NewFromString(price)
	if err != nil {
		return zero, fmt.Errorf("price[%s]: %w", price, domain.ErrInvalidAmount)
	}

	if currencyCode == "" {
		currencyCode = DefaultCurrency
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return zero, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return zero, fmt.Errorf("orders.FindByID: %w", err)
	}

	item, err := order.AddItem(productName, domain.Money{Amount: amount, Currency: unit}, quantity)
	if err != nil {
		return zero, fmt.Errorf("order.AddItem: %w", err)
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return zero, fmt.Errorf("orders.Save: %w", err)
	}

	return item, nil
}

func (s *orderService) Pay(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return s.mutate(ctx, orderID, (*domain.Order).Pay)
}

func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return s.mutate(ctx, orderID, (*domain.Order).Cancel)
}

func (s *orderService) Ship(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return s.mutate(ctx, orderID, (*domain.Order).Ship)
}

func (s *orderService) Complete(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return s.mutate(ctx, orderID, (*domain.Order).Complete)
}

func (s *orderService) List(ctx context.Context, userID *uuid.UUID) ([]domain.Order, error) {
	if userID != nil {
		return s.orders.FindByUser(ctx, *userID)
	}
	return s.orders.FindAll(ctx)
}

func (s *orderService) History(ctx context.Context, orderID uuid.UUID) ([]domain.StatusChange, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders.FindByID: %w", err)
	}
	return order.History, nil
}

func (s *orderService) mutate(ctx context.Context, orderID uuid.UUID, transition func(*domain.Order) error) (domain.Order, error) {
	var zero domain.Order

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return zero, fmt.Errorf("orders.FindByID: %w", err)
	}

	if err := transition(&order); err != nil {
		return zero, err
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return zero, fmt.Errorf("orders.Save: %w", err)
	}

	s.logger.Info("order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("status", string(order.Status)))

	return order, nil
}
