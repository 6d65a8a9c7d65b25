package services

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"storefront/apperr"
	"storefront/mailer"
	"storefront/utils"
)

// ResetRequestedMessage is returned whether or not the address is registered.
const ResetRequestedMessage = "If your email is registered, you will receive a password reset link"

const (
	minPasswordLength = 8
	resetMailFailed   = "Failed to send reset email"
)

var (
	ErrEmailRequired     = apperr.Validation("Email is required")
	ErrInvalidResetToken = apperr.Auth("Invalid or expired reset token")
	ErrWeakPassword      = apperr.Validation("Password must be at least 8 characters")
)

type PasswordResetService struct {
	db          *sql.DB
	tokens      *utils.TokenManager
	mailer      mailer.Mailer
	frontendURL string
}

func NewPasswordResetService(db *sql.DB, tokens *utils.TokenManager, m mailer.Mailer, frontendURL string) *PasswordResetService {
	return &PasswordResetService{db: db, tokens: tokens, mailer: m, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// RequestReset emails a reset link when email belongs to an account. Unknown
// addresses get the same answer as known ones.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmailRequired
	}

	var passwordHash string
	err := s.db.QueryRowContext(ctx, `SELECT password FROM users WHERE email = ?`, email).Scan(&passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		log.Info().Msg("password reset requested for unknown email")
		return ResetRequestedMessage, nil
	}
	if err != nil {
		return "", apperr.Internal("An error occurred while processing your request", err)
	}

	token, err := s.tokens.GenerateResetToken(email, passwordHash)
	if err != nil {
		return "", apperr.Internal("An error occurred while processing your request", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, email, s.resetURL(token)); err != nil {
		return "", apperr.Internal(resetMailFailed, err)
	}

	log.Info().Msg("password reset email sent")
	return ResetRequestedMessage, nil
}

// ResetPassword stores a new password for the account the token was issued to.
// A token stops working as soon as the password it was issued against changes.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" || newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	email, fingerprint, err := s.tokens.ParseResetToken(token)
	if err != nil {
		log.Warn().Err(err).Msg("rejected password reset token")
		return ErrInvalidResetToken
	}

	var (
		userID      int
		currentHash string
	)
	err = s.db.QueryRowContext(ctx, `SELECT id, password FROM users WHERE email = ?`, email).Scan(&userID, &currentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return apperr.Internal("An error occurred while processing your request", err)
	}
	if utils.PasswordFingerprint(currentHash) != fingerprint {
		log.Warn().Int("user_id", userID).Msg("password reset token already used")
		return ErrInvalidResetToken
	}

	newHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal("An error occurred while processing your request", err)
	}

	// Guarded on the old hash so two concurrent resets with one token cannot both win.
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = ? WHERE id = ? AND password = ?`, newHash, userID, currentHash,
	)
	if err != nil {
		return apperr.Internal("An error occurred while processing your request", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Internal("An error occurred while processing your request", err)
	} else if n == 0 {
		return ErrInvalidResetToken
	}

	log.Info().Int("user_id", userID).Msg("password reset completed")
	return nil
}

func (s *PasswordResetService) resetURL(token string) string {
	return s.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
}
