package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *captureSender) SendCode(_ context.Context, p domain.Principal, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codes == nil {
		c.codes = map[string]string{}
	}
	c.codes[p.ID] = code
	return nil
}

func (c *captureSender) Code(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[id]
}

func newAuthCodeService(f *fixture) (*service.AuthCodeService, *captureSender) {
	sender := &captureSender{}
	return &service.AuthCodeService{
		Store:       f.store,
		Sender:      sender,
		TTL:         10 * time.Minute,
		MaxAttempts: 5,
		Clock:       f.clock.Now,
	}, sender
}

// wrong returns a six digit code different from code.
func wrong(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestAuthCodes_IssueAndVerify(t *testing.T) {
	f := newFixture(t)
	svc, sender := newAuthCodeService(f)
	ctx := context.Background()

	ac, err := svc.Issue(ctx, guest)
	require.NoError(t, err)
	require.Equal(t, t0.Add(10*time.Minute), ac.ExpiresAt)

	code := sender.Code(guest.ID)
	require.Len(t, code, 6)
	require.NotContains(t, ac.CodeHash, code)

	require.ErrorIs(t, svc.Verify(ctx, guest.ID, wrong(code)), service.ErrInvalidCode)
	require.NoError(t, svc.Verify(ctx, guest.ID, code))

	// A verified code is spent.
	require.ErrorIs(t, svc.Verify(ctx, guest.ID, code), service.ErrNotFound)
	require.ErrorIs(t, svc.Verify(ctx, guest.ID, ""), service.ErrValidation)
}

func TestAuthCodes_AttemptCeiling(t *testing.T) {
	f := newFixture(t)
	svc, sender := newAuthCodeService(f)
	ctx := context.Background()

	_, err := svc.Issue(ctx, guest)
	require.NoError(t, err)
	code := sender.Code(guest.ID)

	for range 5 {
		require.ErrorIs(t, svc.Verify(ctx, guest.ID, wrong(code)), service.ErrInvalidCode)
	}

	var conflict *service.ConflictError
	require.ErrorAs(t, svc.Verify(ctx, guest.ID, code), &conflict)
	require.Equal(t, "locked", conflict.State)

	// A fresh code starts over.
	_, err = svc.Issue(ctx, guest)
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, guest.ID, sender.Code(guest.ID)))
}

func TestAuthCodes_Expiry(t *testing.T) {
	f := newFixture(t)
	svc, sender := newAuthCodeService(f)
	ctx := context.Background()

	_, err := svc.Issue(ctx, guest)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	require.ErrorIs(t, svc.Verify(ctx, guest.ID, sender.Code(guest.ID)), service.ErrConflict)
}
