package authsvc

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Zazh/foxapp/model"
	authrepo "github.com/Zazh/foxapp/repository/auth"
	"github.com/Zazh/foxapp/util/hash"
	"github.com/Zazh/foxapp/util/jwt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

const tokenTTLHours = 72

type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type Service interface {
	Register(ctx context.Context, req model.RegisterReq) (*AuthResponse, error)
	Login(ctx context.Context, req model.LoginReq) (*AuthResponse, error)
	Me(ctx context.Context, userID int64) (*model.User, error)
}

type service struct {
	ar        authrepo.Repo
	jwtSecret string
	log       *slog.Logger
}

func New(ar authrepo.Repo, jwtSecret string, log *slog.Logger) Service {
	return &service{ar: ar, jwtSecret: jwtSecret, log: log}
}

func (s *service) Register(ctx context.Context, req model.RegisterReq) (*AuthResponse, error) {
	pw, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: pw,
	}
	if err := s.ar.Create(ctx, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return s.respond(u)
}

func (s *service) Login(ctx context.Context, req model.LoginReq) (*AuthResponse, error) {
	u, err := s.ar.ByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.Check(u.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.respond(u)
}

func (s *service) Me(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.ar.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *service) respond(u *model.User) (*AuthResponse, error) {
	role := "user"
	if u.IsStaff {
		role = "staff"
	}
	tok, err := jwt.Issue(s.jwtSecret, u.ID, role, tokenTTLHours)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: tok, User: u}, nil
}
