package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer       = "storefront"
	purposeAccess     = "access"
	purposeResetToken = "password_reset"
)

var ErrInvalidToken = errors.New("invalid token")

// AccessClaims are carried by the bearer token returned from login.
type AccessClaims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// ResetClaims are carried by the password reset link. Fingerprint pins the
// token to the password hash current at issue time.
type ResetClaims struct {
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"pwh"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens with one secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) TTL() time.Duration { return m.ttl }

// GenerateToken issues an access token for the user.
func (m *TokenManager) GenerateToken(userID int, username string) (string, error) {
	now := m.now()
	claims := AccessClaims{
		UserID:   userID,
		Username: username,
		Purpose:  purposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.Itoa(userID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseToken verifies an access token and returns the user id it was issued for.
func (m *TokenManager) ParseToken(tokenString string) (int, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return 0, err
	}
	if claims.Purpose != purposeAccess || claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// GenerateResetToken issues a password reset token for email.
func (m *TokenManager) GenerateResetToken(email, passwordHash string) (string, error) {
	now := m.now()
	claims := ResetClaims{
		Purpose:     purposeResetToken,
		Fingerprint: PasswordFingerprint(passwordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseResetToken verifies a reset token and returns the email and fingerprint.
func (m *TokenManager) ParseResetToken(tokenString string) (email, fingerprint string, err error) {
	claims := &ResetClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return "", "", err
	}
	if claims.Purpose != purposeResetToken || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Fingerprint, nil
}

func (m *TokenManager) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// PasswordFingerprint is a short digest of a stored password hash.
func PasswordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}
