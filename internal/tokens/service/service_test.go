package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/audit"
	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/metrics"
	"github.com/aussiebroadwan/tokens/internal/tokens/ratelimit"
	"github.com/aussiebroadwan/tokens/internal/tokens/service"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokens/internal/tokens/webhook"
	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

var (
	t0         = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	testPepper = cryptox.Pepper([]byte("0123456789abcdef0123456789abcdef"))

	admin = domain.Principal{ID: "admin-1", Role: domain.RoleAdmin, OrganizationID: "org-1", Active: true}
	coord = domain.Principal{ID: "coord-1", Role: domain.RoleCoordinator, OrganizationID: "org-1", Active: true}
	guest = domain.Principal{ID: "guest-1", Role: domain.RoleGuest, OrganizationID: "org-1", Active: true}
	other = domain.Principal{ID: "guest-2", Role: domain.RoleGuest, OrganizationID: "org-1", Active: true}
	root  = domain.Principal{ID: "root-1", Role: domain.RoleRoot, OrganizationID: "org-1", Active: true, Superuser: true}

	fromHome = service.RequestInfo{IP: "203.0.113.7", UserAgent: "curl/8.5"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store    store.Store
	clock    *fakeClock
	audit    *audit.MemorySink
	notifier *webhook.Recorder
	invites  *service.InviteService
	tokens   *service.APITokenService
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := newStore(t)
	for _, p := range []domain.Principal{admin, coord, guest, other, root} {
		require.NoError(t, st.Principals().UpsertPrincipal(context.Background(), p))
	}

	f := &fixture{
		store:    st,
		clock:    &fakeClock{now: t0},
		audit:    &audit.MemorySink{},
		notifier: &webhook.Recorder{},
	}
	m := metrics.New(nil)

	f.invites = &service.InviteService{
		Store:      st,
		Pepper:     testPepper,
		Audit:      f.audit,
		Notifier:   f.notifier,
		Metrics:    m,
		Policy:     service.DefaultPolicy(),
		DailyQuota: 5,
		DefaultTTL: 720 * time.Hour,
		Location:   time.UTC,
		Clock:      f.clock.Now,
	}
	f.tokens = &service.APITokenService{
		Store:    st,
		Pepper:   testPepper,
		Audit:    f.audit,
		Notifier: f.notifier,
		Metrics:  m,
		Location: time.UTC,
		Clock:    f.clock.Now,
	}
	return f
}

// limiter shares the fixture's store and clock.
func (f *fixture) limiter(windows ...ratelimit.Window) *ratelimit.Limiter {
	l := ratelimit.New(ratelimit.StoreCounters{Store: f.store}, nil, windows...)
	l.Now = f.clock.Now
	l.Timeout = 0
	return l
}

func (f *fixture) issueInvite(t *testing.T) (domain.Invite, string) {
	t.Helper()
	inv, raw, err := f.invites.IssueInvite(context.Background(), admin,
		service.IssueInviteRequest{TargetRole: domain.RoleGuest}, fromHome)
	require.NoError(t, err)
	return inv, raw
}

func (f *fixture) issueToken(t *testing.T, owner domain.Principal, req service.IssueAPITokenRequest) (domain.APIToken, string) {
	t.Helper()
	if req.ClientName == "" {
		req.ClientName = "ci"
	}
	tok, raw, err := f.tokens.IssueAPIToken(context.Background(), owner, req, fromHome)
	require.NoError(t, err)
	return tok, raw
}

func (f *fixture) usage(t *testing.T, kind domain.TokenKind, id string) []domain.UsageEntry {
	t.Helper()
	entries, err := f.store.UsageLogs().ListUsage(context.Background(), kind, id)
	require.NoError(t, err)
	return entries
}

func countEvents(rec *webhook.Recorder, event string) int {
	n := 0
	for _, e := range rec.Events() {
		if e == event {
			n++
		}
	}
	return n
}
