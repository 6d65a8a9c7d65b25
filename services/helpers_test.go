package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storefront/models"
	"storefront/utils"
)

const testSecret = "test-secret-key-that-is-long-enough"

func testTokens() *utils.TokenManager {
	return utils.NewTokenManager(testSecret, time.Hour)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func loginReq(username, password string) models.LoginRequest {
	return models.LoginRequest{Username: username, Password: password}
}

type sentMail struct {
	kind string
	to   string
	url  string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) record(kind, to, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: kind, to: to, url: url})
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	return m.record("reset", to, resetURL)
}

func (m *fakeMailer) SendOrderConfirmation(_ context.Context, to, _ string, _ models.OrderEvent) error {
	return m.record("confirmation", to, "")
}

func (m *fakeMailer) SendOrderCancellation(_ context.Context, to, _ string, _ models.OrderEvent) error {
	return m.record("cancellation", to, "")
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *fakePublisher) PublishOrderEvent(_ context.Context, event models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

var errBroker = errors.New("broker unavailable")
