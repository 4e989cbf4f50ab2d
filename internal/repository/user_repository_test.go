package repository_test

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"

	"github.com/marketlab/marketplace/internal/domain"
	"github.com/marketlab/marketplace/internal/port"
	"github.com/marketlab/marketplace/internal/repository"
)

type userRepositorySuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	repo      port.UserRepository
	container testcontainers.Container
}

// entry point to run the tests in the suite
func TestUserRepositorySuite(t *testing.T) {
	defer goleak.VerifyNone(t)

	suite.Run(t, new(userRepositorySuite))
}

func (suite *userRepositorySuite) SetupSuite() {
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

	suite.repo = repository.NewUser(suite.pool)
}

func (suite *userRepositorySuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *userRepositorySuite) TestSaveAndFind() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	user := randomUser(t)
	require.NoError(t, suite.repo.Save(ctx, user))

	byID, err := suite.repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byID.ID)
	assert.Equal(t, user.Email, byID.Email)
	assert.Equal(t, user.Name, byID.Name)

	byEmail, err := suite.repo.FindByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func (suite *userRepositorySuite) TestSaveUpsertsByID() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	user := randomUser(t)
	require.NoError(t, suite.repo.Save(ctx, user))

	user.Name = gofakeit.Name()
	user.Email = gofakeit.Email()
	require.NoError(t, suite.repo.Save(ctx, user))

	actual, err := suite.repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Name, actual.Name)
	assert.Equal(t, user.Email, actual.Email)
}

func (suite *userRepositorySuite) TestSave_DuplicateEmail() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	first := randomUser(t)
	require.NoError(t, suite.repo.Save(ctx, first))

	second := randomUser(t)
	second.Email = first.Email

	// uniqueness is enforced by the store, not the repository
	require.Error(t, suite.repo.Save(ctx, second))
}

func (suite *userRepositorySuite) TestFind_NotFound() {
	t := suite.T()
	ctx := t.Context()

	_, err := suite.repo.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = suite.repo.FindByEmail(ctx, gofakeit.Email())
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func (suite *userRepositorySuite) TestFindAll() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	for i := 0; i < 3; i++ {
		require.NoError(t, suite.repo.Save(ctx, randomUser(t)))
	}

	users, err := suite.repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func (suite *userRepositorySuite) TestSave_EmptyID() {
	t := suite.T()

	var user domain.User
	require.EqualError(t, suite.repo.Save(t.Context(), user), "userID is empty")
}

func (suite *userRepositorySuite) deleteAll() {
	_, err := suite.pool.Exec(suite.T().Context(),
		"TRUNCATE TABLE users, orders, order_items, order_status_history CASCADE")
	suite.NoError(err)
}
