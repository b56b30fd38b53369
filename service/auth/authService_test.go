// service/auth/auth_service_test.go
package authsvc

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/Zazh/foxapp/model"
	authrepo "github.com/Zazh/foxapp/repository/auth"
	"github.com/Zazh/foxapp/util/hash"
)

type mockRepo struct {
	createFn  func(ctx context.Context, u *model.User) error
	byEmailFn func(ctx context.Context, email string) (*model.User, error)
	byIDFn    func(ctx context.Context, id int64) (*model.User, error)
}

var _ authrepo.Repo = (*mockRepo)(nil)

func (m *mockRepo) Create(ctx context.Context, u *model.User) error {
	return m.createFn(ctx, u)
}
func (m *mockRepo) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.byEmailFn(ctx, email)
}
func (m *mockRepo) ByID(ctx context.Context, id int64) (*model.User, error) {
	return m.byIDFn(ctx, id)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegister_Success(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			require.NotEmpty(t, u.PasswordHash)
			require.NotEqual(t, "supersecret", u.PasswordHash)
			u.ID = 42
			return nil
		},
	}
	svc := New(m, "test-secret", testLogger())

	out, err := svc.Register(ctx, model.RegisterReq{
		FirstName: "Aruzhan",
		LastName:  "S",
		Email:     "user@example.com",
		Password:  "supersecret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)
	require.Equal(t, int64(42), out.User.ID)
	require.False(t, out.User.IsStaff)
}

func TestRegister_EmailTaken(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			return &pgconn.PgError{Code: pgerrcode.UniqueViolation}
		},
	}
	svc := New(m, "test-secret", testLogger())

	_, err := svc.Register(ctx, model.RegisterReq{
		FirstName: "A", LastName: "B",
		Email:    "taken@example.com",
		Password: "123456",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	hashed, err := hash.HashPassword("correct-password")
	require.NoError(t, err)

	m := &mockRepo{
		byEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: 7, Email: email, PasswordHash: hashed, IsStaff: true}, nil
		},
	}
	svc := New(m, "test-secret", testLogger())

	out, err := svc.Login(ctx, model.LoginReq{Email: "staff@example.com", Password: "correct-password"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)
	require.True(t, out.User.IsStaff)
}

func TestLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	hashed, err := hash.HashPassword("correct-password")
	require.NoError(t, err)

	m := &mockRepo{
		byEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: 7, PasswordHash: hashed}, nil
		},
	}
	svc := New(m, "test-secret", testLogger())

	_, err = svc.Login(ctx, model.LoginReq{Email: "user@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		byEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, sql.ErrNoRows
		},
	}
	svc := New(m, "test-secret", testLogger())

	_, err := svc.Login(ctx, model.LoginReq{Email: "missing@example.com", Password: "whatever"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_RepoError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")
	m := &mockRepo{
		byEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, boom
		},
	}
	svc := New(m, "test-secret", testLogger())

	_, err := svc.Login(ctx, model.LoginReq{Email: "a@b.c", Password: "x"})
	require.ErrorIs(t, err, boom)
}
