package authsvc_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"booklibrary/model"
	authsvc "booklibrary/service/auth"
	"booklibrary/util/hash"
)

type userRepoMock struct {
	createFn     func(ctx context.Context, u *model.User) error
	byUsernameFn func(ctx context.Context, username string) (*model.User, error)
	byIDFn       func(ctx context.Context, id int64) (*model.User, error)
}

func (m *userRepoMock) Create(ctx context.Context, u *model.User) error {
	return m.createFn(ctx, u)
}
func (m *userRepoMock) ByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.byUsernameFn(ctx, username)
}
func (m *userRepoMock) ByID(ctx context.Context, id int64) (*model.User, error) {
	return m.byIDFn(ctx, id)
}

func TestRegister_Success(t *testing.T) {
	repo := &userRepoMock{
		createFn: func(ctx context.Context, u *model.User) error {
			u.ID = 42
			return nil
		},
	}
	s := authsvc.New(repo, "secret")

	u, token, err := s.Register(context.Background(), model.RegisterReq{
		Username: "  paul  ",
		Name:     "Paul Atreides",
		Password: "muaddib",
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), u.ID)
	require.Equal(t, "paul", u.Username)
	require.NotEmpty(t, token)
	require.NotEqual(t, "muaddib", u.PasswordHash)
	require.True(t, hash.Check(u.PasswordHash, "muaddib"))
}

func TestRegister_BadInput(t *testing.T) {
	s := authsvc.New(&userRepoMock{}, "secret")

	cases := []model.RegisterReq{
		{Username: "", Name: "Paul", Password: "muaddib"},
		{Username: "   ", Name: "Paul", Password: "muaddib"},
		{Username: "paul", Name: "", Password: "muaddib"},
		{Username: "paul", Name: "Paul", Password: "short"},
	}
	for _, req := range cases {
		_, _, err := s.Register(context.Background(), req)
		require.ErrorIs(t, err, authsvc.ErrBadInput)
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	repo := &userRepoMock{
		createFn: func(ctx context.Context, u *model.User) error {
			return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key"}
		},
	}
	s := authsvc.New(repo, "secret")

	_, _, err := s.Register(context.Background(), model.RegisterReq{
		Username: "paul", Name: "Paul Atreides", Password: "muaddib",
	})
	require.ErrorIs(t, err, authsvc.ErrUsernameTaken)
}

func TestLogin_Success(t *testing.T) {
	hashed, err := hash.HashPassword("muaddib")
	require.NoError(t, err)

	repo := &userRepoMock{
		byUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: 42, Username: username, PasswordHash: hashed}, nil
		},
	}
	s := authsvc.New(repo, "secret")

	u, token, err := s.Login(context.Background(), model.LoginReq{Username: "paul", Password: "muaddib"})
	require.NoError(t, err)
	require.Equal(t, int64(42), u.ID)
	require.NotEmpty(t, token)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	hashed, err := hash.HashPassword("muaddib")
	require.NoError(t, err)

	// unknown user and wrong password are indistinguishable to the caller
	repo := &userRepoMock{
		byUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return nil, sql.ErrNoRows
		},
	}
	s := authsvc.New(repo, "secret")
	_, _, err = s.Login(context.Background(), model.LoginReq{Username: "ghost", Password: "muaddib"})
	require.ErrorIs(t, err, authsvc.ErrInvalidCreds)

	repo = &userRepoMock{
		byUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: 42, Username: username, PasswordHash: hashed}, nil
		},
	}
	s = authsvc.New(repo, "secret")
	_, _, err = s.Login(context.Background(), model.LoginReq{Username: "paul", Password: "wrong"})
	require.ErrorIs(t, err, authsvc.ErrInvalidCreds)
}
