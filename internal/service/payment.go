package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketlab/marketplace/internal/domain"
	"github.com/marketlab/marketplace/internal/repository"
)

type PaymentMode string

const (
	PaymentModeSafe   PaymentMode = "safe"
	PaymentModeUnsafe PaymentMode = "unsafe"
)

func ToPaymentMode(s string) (PaymentMode, error) {
	switch mode := PaymentMode(s); mode {
	case "":
		return PaymentModeSafe, nil
	case PaymentModeSafe, PaymentModeUnsafe:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown payment mode %q", s)
	}
}

// ConcurrentReport summarizes a burst of simultaneous payment attempts
// against one order. PaymentCount comes from the history ledger, the
// oracle for detecting a duplicate payment.
type ConcurrentReport struct {
	OrderID      uuid.UUID   `json:"order_id"`
	Mode         PaymentMode `json:"mode"`
	Attempts     int         `json:"attempts"`
	Successes    int         `json:"successes"`
	Failures     int         `json:"failures"`
	Errors       []string    `json:"errors,omitempty"`
	PaymentCount int         `json:"payment_count"`
	RaceDetected bool        `json:"race_detected"`
}

type Payments interface {
	// Pay transitions the order to paid directly against the status
	// column, never through a loaded aggregate. Mode picks the locking
	// discipline.
	Pay(ctx context.Context, orderID uuid.UUID, mode PaymentMode) (domain.OrderStatus, error)

	// PaidHistory returns the paid ledger entries for the order,
	// oldest first.
	PaidHistory(ctx context.Context, orderID uuid.UUID) ([]domain.StatusChange, error)

	// RunConcurrent fires attempts simultaneous payments on independent
	// connections and reports the outcome.
	RunConcurrent(ctx context.Context, orderID uuid.UUID, mode PaymentMode, attempts int) (ConcurrentReport, error)
}

type paymentService struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	// beforeUpdate runs between the status read and the status update
	// inside a payment transaction. Tests use it to hold concurrent
	// transactions open in that window; production never sets it.
	beforeUpdate func()
}

func NewPayments(pool *pgxpool.Pool, logger *zap.Logger) Payments {
	return &paymentService{pool: pool, logger: logger}
}

// SQLSTATE raised by Postgres when a REPEATABLE READ transaction locks a
// row that a concurrent transaction has updated and committed. For a
// payment that race is simply "somebody else paid first".
const serializationFailure = "40001"

func (s *paymentService) Pay(ctx context.Context, orderID uuid.UUID, mode PaymentMode) (domain.OrderStatus, error) {
	var (
		opts pgx.TxOptions
		lock bool
	)

	switch mode {
	case PaymentModeSafe:
		opts = pgx.TxOptions{IsoLevel: pgx.RepeatableRead}
		lock = true
	case PaymentModeUnsafe:
		// storage defaults: READ COMMITTED, no row lock
	default:
		return "", fmt.Errorf("unknown payment mode %q", mode)
	}

	status, err := repository.WithTx(ctx, s.pool, opts, func(tx pgx.Tx) (domain.OrderStatus, error) {
		return s.payTx(ctx, tx, orderID, lock)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
			return "", fmt.Errorf("order[%s] lost the race: %w", orderID, domain.ErrOrderAlreadyPaid)
		}
		return "", err
	}

	s.logger.Info("order paid",
		zap.String("order_id", orderID.String()),
		zap.String("mode", string(mode)))

	return status, nil
}

// payTx is the read-check-update-append sequence both strategies share.
// With lock=false there is a window between the read and the update in
// which a concurrent transaction can observe the same pre-update status
// and also proceed. That window is the point of the unsafe mode.
func (s *paymentService) payTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, lock bool) (domain.OrderStatus, error) {
	query := `SELECT status FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var status string
	if err := tx.QueryRow(ctx, query, orderID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("order[%s]: %w", orderID, domain.ErrOrderNotFound)
		}
		return "", fmt.Errorf("select status: %w", err)
	}

	if domain.OrderStatus(status) != domain.OrderStatusCreated {
		return "", fmt.Errorf("order[%s] status[%s]: %w", orderID, status, domain.ErrOrderAlreadyPaid)
	}

	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = 'paid' WHERE id = $1 AND status = 'created'`, orderID); err != nil {
		return "", fmt.Errorf("update status: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, status, changed_at)
		VALUES ($1, $2, 'paid', now())`, uuid.New(), orderID); err != nil {
		return "", fmt.Errorf("insert history: %w", err)
	}

	return domain.OrderStatusPaid, nil
}

func (s *paymentService) PaidHistory(ctx context.Context, orderID uuid.UUID) ([]domain.StatusChange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, status, changed_at
		FROM order_status_history
		WHERE order_id = $1 AND status = 'paid'
		ORDER BY changed_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
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
		change.Status = domain.OrderStatus(status)

		history = append(history, change)
	}

	return history, rows.Err()
}

func (s *paymentService) RunConcurrent(ctx context.Context, orderID uuid.UUID, mode PaymentMode, attempts int) (ConcurrentReport, error) {
	if attempts < 2 {
		attempts = 2
	}

	report := ConcurrentReport{
		OrderID:  orderID,
		Mode:     mode,
		Attempts: attempts,
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)

	start := time.Now()

	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := s.Pay(ctx, orderID, mode)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures++
				report.Errors = append(report.Errors, err.Error())
			} else {
				report.Successes++
			}
			return nil
		})
	}

	// goroutines record outcomes themselves, never fail the group
	_ = g.Wait()

	history, err := s.PaidHistory(ctx, orderID)
	if err != nil {
		return report, fmt.Errorf("s.PaidHistory: %w", err)
	}

	report.PaymentCount = len(history)
	report.RaceDetected = len(history) > 1

	s.logger.Info("concurrent payment probe finished",
		zap.String("order_id", orderID.String()),
		zap.String("mode", string(mode)),
		zap.Int("successes", report.Successes),
		zap.Int("failures", report.Failures),
		zap.Int("payment_count", report.PaymentCount),
		zap.Bool("race_detected", report.RaceDetected),
		zap.Duration("elapsed", time.Since(start)))

	return report, nil
}
