package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/database/dbtest"
	"storefront/models"
)

func TestRegister(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewUserService(db, testTokens())

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: " alice ",
		Email:    "alice@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Positive(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT password FROM users WHERE id = ?`, user.ID).Scan(&stored))
	assert.NotEqual(t, "s3cret-pass", stored)
	assert.Contains(t, stored, "$argon2id$")
}

func TestRegisterMissingFields(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewUserService(db, testTokens())

	for _, req := range []models.RegisterRequest{
		{Email: "a@example.com", Password: "pw"},
		{Username: "a", Password: "pw"},
		{Username: "a", Email: "a@example.com"},
		{Username: "   ", Email: "a@example.com", Password: "pw"},
	} {
		_, err := svc.Register(context.Background(), req)
		assert.ErrorIs(t, err, ErrMissingFields)
	}
	assert.Equal(t, 0, dbtest.Count(t, db, "users"))
}

func TestRegisterDuplicate(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewUserService(db, testTokens())
	dbtest.InsertUser(t, db, "alice", "alice@example.com", mustHash(t, "pw"))

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "long-enough-pw",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Username: "bob", Email: "alice@example.com", Password: "long-enough-pw",
	})
	assert.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, 1, dbtest.Count(t, db, "users"))
}

func TestRegisterFieldLimits(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewUserService(db, testTokens())
	ok := models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "hunter22"}

	cases := []struct {
		name   string
		mutate func(r *models.RegisterRequest)
		want   error
	}{
		{"short password", func(r *models.RegisterRequest) { r.Password = "x" }, ErrWeakPassword},
		{"long password", func(r *models.RegisterRequest) { r.Password = strings.Repeat("p", 129) }, ErrPasswordTooLong},
		{"long username", func(r *models.RegisterRequest) { r.Username = strings.Repeat("a", 51) }, ErrUsernameTooLong},
		{"long email", func(r *models.RegisterRequest) { r.Email = strings.Repeat("e", 250) + "@example.com" }, ErrEmailTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := ok
			tc.mutate(&req)
			_, err := svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, 0, dbtest.Count(t, db, "users"))

	// Limits count characters, not bytes.
	req := ok
	req.Username = strings.Repeat("é", 50)
	_, err := svc.Register(context.Background(), req)
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	db := dbtest.Open(t)
	tokens := testTokens()
	svc := NewUserService(db, tokens)
	id := dbtest.InsertUser(t, db, "alice", "alice@example.com", mustHash(t, "correct horse"))

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, id, resp.User.ID)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	userID, err := tokens.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, userID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewUserService(db, testTokens())
	dbtest.InsertUser(t, db, "alice", "alice@example.com", mustHash(t, "correct horse"))

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown users get the same error as a wrong password.
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "mallory", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "alice"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestLoginWithCorruptHash(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewUserService(db, testTokens())
	dbtest.InsertUser(t, db, "alice", "alice@example.com", "not-a-hash")

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "anything"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetUser(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewUserService(db, testTokens())
	id := dbtest.InsertUser(t, db, "alice", "alice@example.com", mustHash(t, "pw"))

	user, err := svc.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = svc.GetUser(context.Background(), id+100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
