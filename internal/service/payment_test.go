package service

import (
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketlab/marketplace/internal/domain"
	"github.com/marketlab/marketplace/internal/port"
	"github.com/marketlab/marketplace/internal/repository"
)

type paymentServiceSuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	users     port.UserRepository
	orders    port.OrderRepository
	container testcontainers.Container
}

// entry point to run the tests in the suite
func TestPaymentServiceSuite(t *testing.T) {
	// Verifies no leaks after all tests in the suite run.
	defer goleak.VerifyNone(t)

	suite.Run(t, new(paymentServiceSuite))
}

func (suite *paymentServiceSuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.NoError(err)

	suite.NoError(repository.ApplySchema(ctx, suite.pool))

	suite.users = repository.NewUser(suite.pool)
	suite.orders = repository.NewOrder(suite.pool)
}

func (suite *paymentServiceSuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *paymentServiceSuite) newService() *paymentService {
	return &paymentService{pool: suite.pool, logger: zap.NewNop()}
}

// createOrder persists a fresh order in status created and returns its id.
func (suite *paymentServiceSuite) createOrder() uuid.UUID {
	t := suite.T()
	ctx := t.Context()

	user, err := domain.NewUser(gofakeit.Email(), gofakeit.Name())
	require.NoError(t, err)
	require.NoError(t, suite.users.Save(ctx, user))

	order := domain.NewOrder(user.ID)
	require.NoError(t, suite.orders.Save(ctx, order))

	return order.ID
}

func (suite *paymentServiceSuite) TestPay_Sequential() {
	for _, mode := range []PaymentMode{PaymentModeSafe, PaymentModeUnsafe} {
		suite.Run(string(mode), func() {
			t := suite.T()
			ctx := t.Context()

			svc := suite.newService()
			orderID := suite.createOrder()

			status, err := svc.Pay(ctx, orderID, mode)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusPaid, status)

			// a second attempt is a correct, terminal outcome
			_, err = svc.Pay(ctx, orderID, mode)
			require.ErrorIs(t, err, domain.ErrOrderAlreadyPaid)

			history, err := svc.PaidHistory(ctx, orderID)
			require.NoError(t, err)
			assert.Len(t, history, 1)

			order, err := suite.orders.FindByID(ctx, orderID)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusPaid, order.Status)
		})
	}
}

func (suite *paymentServiceSuite) TestPay_NotFound() {
	t := suite.T()
	ctx := t.Context()

	svc := suite.newService()

	for _, mode := range []PaymentMode{PaymentModeSafe, PaymentModeUnsafe} {
		_, err := svc.Pay(ctx, uuid.New(), mode)
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
	}
}

func (suite *paymentServiceSuite) TestPay_UnknownMode() {
	t := suite.T()

	svc := suite.newService()

	_, err := svc.Pay(t.Context(), uuid.New(), PaymentMode("maybe"))
	require.EqualError(t, err, `unknown payment mode "maybe"`)
}

// At-most-once: of N simultaneous safe attempts exactly one commits the
// transition, the rest lose the race and observe the paid status.
func (suite *paymentServiceSuite) TestPaySafe_Concurrent() {
	t := suite.T()
	ctx := t.Context()

	svc := suite.newService()
	orderID := suite.createOrder()

	const attempts = 4

	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := svc.Pay(ctx, orderID, PaymentModeSafe)

			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrOrderAlreadyPaid)
	}
	assert.Equal(t, 1, successes)

	history, err := svc.PaidHistory(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// The unsafe mode has a window between the status read and the update in
// which a rival transaction can read the same pre-update status. The
// beforeUpdate barrier holds both transactions in that window, making the
// double payment deterministic: both commit, the ledger records two paid
// entries.
func (suite *paymentServiceSuite) TestPayUnsafe_DoublePayment() {
	t := suite.T()
	ctx := t.Context()

	svc := suite.newService()
	orderID := suite.createOrder()

	var barrier sync.WaitGroup
	barrier.Add(2)
	svc.beforeUpdate = func() {
		barrier.Done()
		barrier.Wait()
	}

	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := svc.Pay(ctx, orderID, PaymentModeUnsafe)
			return err
		})
	}

	// both attempts report success
	require.NoError(t, g.Wait())

	history, err := svc.PaidHistory(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "expected a duplicate payment in the ledger")
}

// The same interleaving under the safe mode: the second transaction
// blocks on the row lock instead of entering the window, so the barrier
// must not be shared or the test would deadlock. Each attempt gets its
// own service; only the first is delayed.
func (suite *paymentServiceSuite) TestPaySafe_BlocksRival() {
	t := suite.T()
	ctx := t.Context()

	orderID := suite.createOrder()

	first := suite.newService()
	second := suite.newService()

	entered := make(chan struct{})
	release := make(chan struct{})
	first.beforeUpdate = func() {
		close(entered)
		<-release
	}

	var g errgroup.Group

	g.Go(func() error {
		_, err := first.Pay(ctx, orderID, PaymentModeSafe)
		return err
	})

	var rivalErr error
	g.Go(func() error {
		<-entered // first holds the row lock now
		_, rivalErr = second.Pay(ctx, orderID, PaymentModeSafe)
		return nil
	})

	<-entered
	time.Sleep(200 * time.Millisecond) // let the rival block on the lock
	close(release)

	require.NoError(t, g.Wait())
	require.ErrorIs(t, rivalErr, domain.ErrOrderAlreadyPaid)

	history, err := first.PaidHistory(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// Locks are per order row: payments on distinct orders proceed
// independently.
func (suite *paymentServiceSuite) TestPaySafe_CrossOrderIndependence() {
	t := suite.T()
	ctx := t.Context()

	svc := suite.newService()
	firstOrder := suite.createOrder()
	secondOrder := suite.createOrder()

	var g errgroup.Group
	for _, orderID := range []uuid.UUID{firstOrder, secondOrder} {
		g.Go(func() error {
			_, err := svc.Pay(ctx, orderID, PaymentModeSafe)
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, orderID := range []uuid.UUID{firstOrder, secondOrder} {
		history, err := svc.PaidHistory(ctx, orderID)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	}
}

func (suite *paymentServiceSuite) TestRunConcurrent_Safe() {
	t := suite.T()
	ctx := t.Context()

	svc := suite.newService()
	orderID := suite.createOrder()

	report, err := svc.RunConcurrent(ctx, orderID, PaymentModeSafe, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Successes)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 1, report.PaymentCount)
	assert.False(t, report.RaceDetected)
}

func (suite *paymentServiceSuite) TestRunConcurrent_UnsafeRace() {
	t := suite.T()
	ctx := t.Context()

	svc := suite.newService()
	orderID := suite.createOrder()

	var barrier sync.WaitGroup
	barrier.Add(2)
	svc.beforeUpdate = func() {
		barrier.Done()
		barrier.Wait()
	}

	report, err := svc.RunConcurrent(ctx, orderID, PaymentModeUnsafe, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Successes)
	assert.Equal(t, 2, report.PaymentCount)
	assert.True(t, report.RaceDetected)
}

func (suite *paymentServiceSuite) TestPaidHistory_Ordering() {
	t := suite.T()
	ctx := t.Context()

	svc := suite.newService()
	orderID := suite.createOrder()

	_, err := svc.Pay(ctx, orderID, PaymentModeSafe)
	require.NoError(t, err)

	// a second ledger entry as if a race had slipped through
	_, err = suite.pool.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, status, changed_at)
		VALUES ($1, $2, 'paid', now() + interval '1 second')`, uuid.New(), orderID)
	require.NoError(t, err)

	history, err := svc.PaidHistory(ctx, orderID)
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.True(t, history[0].ChangedAt.Before(history[1].ChangedAt))
	for _, change := range history {
		assert.Equal(t, domain.OrderStatusPaid, change.Status)
		assert.Equal(t, orderID, change.OrderID)
	}
}
