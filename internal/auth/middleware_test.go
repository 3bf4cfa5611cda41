package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVerifier accepts exactly one token.
type fakeVerifier struct {
	token string
	id    Identity
	calls int
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (Identity, error) {
	f.calls++
	if token != f.token {
		return Identity{}, ErrInvalidToken
	}
	return f.id, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoIdentity writes the uid from context, or "anonymous".
func echoIdentity(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(id.UID))
}

func serve(t *testing.T, mw func(http.Handler) http.Handler, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(echoIdentity)).ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body["error"])
	return body["message"]
}

func TestRequireAuth(t *testing.T) {
	v := &fakeVerifier{token: "good", id: Identity{UID: "u1"}}
	mw := RequireAuth(v, quietLogger())

	t.Run("no header", func(t *testing.T) {
		rec := serve(t, mw, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "No token provided", decodeMessage(t, rec))
	})

	t.Run("wrong scheme", func(t *testing.T) {
		rec := serve(t, mw, "Basic Z29vZA==")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "No token provided", decodeMessage(t, rec))
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := serve(t, mw, "Bearer bad")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid or expired token", decodeMessage(t, rec))
	})

	t.Run("valid token", func(t *testing.T) {
		rec := serve(t, mw, "bearer good")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})
}

func TestOptionalAuth(t *testing.T) {
	v := &fakeVerifier{token: "good", id: Identity{UID: "u1"}}
	mw := OptionalAuth(v, quietLogger())

	t.Run("no header is anonymous", func(t *testing.T) {
		before := v.calls
		rec := serve(t, mw, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
		assert.Equal(t, before, v.calls, "verifier should not be called without a header")
	})

	t.Run("valid token is attached", func(t *testing.T) {
		rec := serve(t, mw, "Bearer good")
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("presented but invalid token is rejected", func(t *testing.T) {
		rec := serve(t, mw, "Bearer bad")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestIdentityFromContext_EmptyUIDIsAnonymous(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{})
	_, ok := IdentityFromContext(ctx)
	assert.False(t, ok)

	_, ok = IdentityFromContext(context.Background())
	assert.False(t, ok)
}
