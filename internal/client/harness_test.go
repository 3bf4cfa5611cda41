package client

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/collabgrow/collabgrow/internal/auth"
	"github.com/collabgrow/collabgrow/internal/config"
	"github.com/collabgrow/collabgrow/internal/mail"
	"github.com/collabgrow/collabgrow/internal/repository/sqlite"
	"github.com/collabgrow/collabgrow/internal/server"
)

// =========================================================================
// TEST HARNESS
// =========================================================================
//
// The client tests run against the real server stack (handlers, services,
// in-memory SQLite) behind httptest. Only the identity provider and the
// mail relay are faked.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tokenVerifier accepts tokens minted by fakeIdP ("token-<uid>").
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	uid, ok := strings.CutPrefix(token, "token-")
	if !ok || uid == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.Identity{UID: uid}, nil
}

type account struct {
	uid      string
	password string
}

// fakeIdP is an in-memory IdentityProvider. Refresh tokens are
// "refresh-<uid>" until revoked.
type fakeIdP struct {
	mu        sync.Mutex
	accounts  map[string]account
	revoked   map[string]bool
	signOuts  int
	refreshes int
}

func newFakeIdP() *fakeIdP {
	return &fakeIdP{accounts: make(map[string]account), revoked: make(map[string]bool)}
}

func credentialsFor(uid, email string) Credentials {
	return Credentials{UID: uid, Email: email, IDToken: "token-" + uid, RefreshToken: "refresh-" + uid}
}

func (f *fakeIdP) Refresh(_ context.Context, refreshToken string) (Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	uid, ok := strings.CutPrefix(refreshToken, "refresh-")
	if !ok || uid == "" || f.revoked[uid] {
		return Credentials{}, ErrSessionExpired
	}
	return Credentials{UID: uid, IDToken: "token-" + uid, RefreshToken: refreshToken}, nil
}

func (f *fakeIdP) revoke(uid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[uid] = true
}

func (f *fakeIdP) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *fakeIdP) SignUp(_ context.Context, email, password string) (Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return Credentials{}, ErrEmailExists
	}
	uid := "uid-" + strings.Split(email, "@")[0]
	f.accounts[email] = account{uid: uid, password: password}
	return credentialsFor(uid, email), nil
}

func (f *fakeIdP) SignIn(_ context.Context, email, password string) (Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[email]
	if !ok || acct.password != password {
		return Credentials{}, ErrInvalidCredentials
	}
	return credentialsFor(acct.uid, email), nil
}

func (f *fakeIdP) SignOut(context.Context, Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	return nil
}

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type harness struct {
	api    *API
	idp    *fakeIdP
	outbox *outbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)

	box := &outbox{}
	cfg := config.Config{
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		RequestTimeout: 5 * time.Second,
	}
	srv, err := server.New(cfg, server.Deps{Store: db, Verifier: tokenVerifier{}, Mailer: box}, discardLogger())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = db.Close(context.Background())
	})

	return &harness{
		api:    NewAPI(ts.URL, ts.Client()),
		idp:    newFakeIdP(),
		outbox: box,
	}
}

var fastRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func (h *harness) session(store SessionStore) *Session {
	return NewSession(h.api, h.idp, store, discardLogger(), WithRetryPolicy(fastRetry))
}
