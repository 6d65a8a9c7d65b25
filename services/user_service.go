package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"storefront/apperr"
	"storefront/database"
	"storefront/models"
	"storefront/utils"
)

var (
	ErrMissingFields      = apperr.Validation("Missing required fields")
	ErrUserExists         = apperr.Conflict("Username or email already exists")
	ErrInvalidCredentials = apperr.Auth("Invalid username or password")
	ErrUserNotFound       = apperr.NotFound("User not found")
	ErrUsernameTooLong    = apperr.Validation("Username must be at most 50 characters")
	ErrEmailTooLong       = apperr.Validation("Email must be at most 255 characters")
	ErrPasswordTooLong    = apperr.Validation("Password must be at most 128 characters")
)

// Column widths of users.username and users.email.
const (
	maxUsernameLength = 50
	maxEmailLength    = 255
	maxPasswordLength = 128
)

// UserService covers registration, login and account lookup.
type UserService struct {
	db     *sql.DB
	tokens *utils.TokenManager
}

func NewUserService(db *sql.DB, tokens *utils.TokenManager) *UserService {
	return &UserService{db: db, tokens: tokens}
}

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.PublicUser, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return nil, ErrMissingFields
	}
	if err := validateRegistration(username, email, req.Password); err != nil {
		return nil, err
	}

	var existing int
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = ? OR email = ? LIMIT 1`, username, email,
	).Scan(&existing)
	switch {
	case err == nil:
		log.Warn().Str("username", username).Msg("registration rejected, username or email taken")
		return nil, ErrUserExists
	case !errors.Is(err, sql.ErrNoRows):
		return nil, apperr.Internal("An unexpected error occurred", err)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("An unexpected error occurred", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password) VALUES (?, ?, ?)`, username, email, hash,
	)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return nil, ErrUserExists
		}
		return nil, apperr.Internal("An unexpected error occurred", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Internal("An unexpected error occurred", err)
	}

	log.Info().Int64("user_id", id).Str("username", username).Msg("user registered")
	return &models.PublicUser{ID: int(id), Username: username, Email: email}, nil
}

func validateRegistration(username, email, password string) error {
	switch {
	case utf8.RuneCountInString(username) > maxUsernameLength:
		return ErrUsernameTooLong
	case utf8.RuneCountInString(email) > maxEmailLength:
		return ErrEmailTooLong
	case len(password) < minPasswordLength:
		return ErrWeakPassword
	case len(password) > maxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrMissingFields
	}

	user, err := s.findUser(ctx, `WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn().Str("username", username).Msg("failed login attempt")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal("Database error occurred", err)
	}

	ok, err := utils.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		log.Error().Err(err).Int("user_id", user.ID).Msg("stored password hash could not be verified")
	}
	if !ok {
		log.Warn().Str("username", username).Msg("failed login attempt")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, apperr.Internal("An unexpected error occurred", err)
	}

	log.Info().Int("user_id", user.ID).Msg("login successful")
	return &models.LoginResponse{
		User:        user.Public(),
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}, nil
}

func (s *UserService) GetUser(ctx context.Context, id int) (*models.User, error) {
	user, err := s.findUser(ctx, `WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Internal("Database error occurred", err)
	}
	return user, nil
}

func (s *UserService) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
