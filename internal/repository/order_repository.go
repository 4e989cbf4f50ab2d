package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/marketlab/marketplace/internal/domain"
	"github.com/marketlab/marketplace/internal/port"
)

type orderRepository struct {
	pool *pgxpool.Pool
}

func NewOrder(pool *pgxpool.Pool) port.OrderRepository {
	return &orderRepository{pool: pool}
}

// Save upserts the header, then replaces the item and history sets
// wholesale. Delete-then-reinsert, not incremental diffing: the last
// writer of an aggregate wins, which is why concurrent payments go
// through service.Payments instead of this path.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	if order.ID == uuid.Nil {
		return fmt.Errorf("orderID is empty")
	}

	if err := r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, status, total_amount, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET status = EXCLUDED.status, total_amount = EXCLUDED.total_amount`,
			order.ID, order.UserID, string(order.Status), order.TotalAmount, order.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert order: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
			return fmt.Errorf("delete order_items: %w", err)
		}

		// TODO: batch the reinserts
		for _, item := range order.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items (id, order_id, product_name, price_amount, price_currency, quantity)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				item.ID, order.ID, item.ProductName, item.Price.Amount, item.Price.Currency.String(), item.Quantity)
			if err != nil {
				return fmt.Errorf("insert order_item: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_status_history WHERE order_id = $1`, order.ID); err != nil {
			return fmt.Errorf("delete order_status_history: %w", err)
		}

		for _, change := range order.History {
			_, err := tx.Exec(ctx, `
				INSERT INTO order_status_history (id, order_id, status, changed_at)
				VALUES ($1, $2, $3, $4)`,
				change.ID, order.ID, string(change.Status), change.ChangedAt)
			if err != nil {
				return fmt.Errorf("insert order_status_history: %w", err)
			}
		}

		return nil
	}); err != nil {
		return fmt.Errorf("r.withTx: %w", err)
	}

	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	var o domain.Order

	order, err := WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) (domain.Order, error) {
		header, err := r.findHeader(ctx, tx, orderID)
		if err != nil {
			return o, fmt.Errorf("r.findHeader: %w", err)
		}

		items, err := r.findItems(ctx, tx, orderID)
		if err != nil {
			return o, fmt.Errorf("r.findItems: %w", err)
		}

		history, err := r.findHistory(ctx, tx, orderID)
		if err != nil {
			return o, fmt.Errorf("r.findHistory: %w", err)
		}

		return domain.RestoreOrder(header.id, header.userID, header.status,
			header.totalAmount, header.createdAt, items, history), nil
	})
	if err != nil {
		return o, fmt.Errorf("WithTx: %w", err)
	}

	return order, nil
}

// FindByUser re-fetches full detail per id. N+1 on purpose: list sizes
// are tiny in this lab and FindByID keeps the single restore path.
func (r *orderRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return r.findByIDs(ctx, `SELECT id FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *orderRepository) FindAll(ctx context.Context) ([]domain.Order, error) {
	return r.findByIDs(ctx, `SELECT id FROM orders ORDER BY created_at DESC`)
}

type orderHeader struct {
	id          uuid.UUID
	userID      uuid.UUID
	status      domain.OrderStatus
	totalAmount decimal.Decimal
	createdAt   time.Time
}

func (r *orderRepository) findHeader(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (orderHeader, error) {
	var (
		h      orderHeader
		status string
	)

	row := tx.QueryRow(ctx, `
		SELECT id, user_id, status, total_amount, created_at
		FROM orders WHERE id = $1`, orderID)

	if err := row.Scan(&h.id, &h.userID, &status, &h.totalAmount, &h.createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return h, fmt.Errorf("order[%s]: %w", orderID, domain.ErrOrderNotFound)
		}
		return h, fmt.Errorf("row.Scan: %w", err)
	}

	parsed, err := domain.ToOrderStatus(status)
	if err != nil {
		return h, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
	}
	h.status = parsed

	return h, nil
}

func (r *orderRepository) findItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, order_id, product_name, price_amount, price_currency, quantity
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("tx.Query: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			item         domain.OrderItem
			currencyCode string
		)

		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName,
			&item.Price.Amount, &currencyCode, &item.Quantity); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		parsedCurrency, err := currency.ParseISO(currencyCode)
		if err != nil {
			return nil, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
		}
		item.Price.Currency = parsedCurrency

		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *orderRepository) findHistory(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]domain.StatusChange, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, order_id, status, changed_at
		FROM order_status_history WHERE order_id = $1
		ORDER BY changed_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("tx.Query: %w", err)
	}
	defer rows.Close()

	var history []domain.StatusChange
	for rows.Next() {
		var (
			change domain.StatusChange
			status string
		)

		if err := rows.Scan(&change.ID, &change.OrderID, &status, &change.ChangedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		parsed, err := domain.ToOrderStatus(status)
		if err != nil {
			return nil, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
		}
		change.Status = parsed

		history = append(history, change)
	}

	return history, rows.Err()
}

func (r *orderRepository) findByIDs(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	var orders []domain.Order
	for _, id := range ids {
		order, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("r.FindByID[%s]: %w", id, err)
		}
		orders = append(orders, order)
	}

	return orders, nil
}

func (r *orderRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	_, err := WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}
