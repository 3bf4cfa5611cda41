package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityToolkit fakes the two password endpoints of the Identity Toolkit.
func identityToolkit(t *testing.T) *httptest.Server {
	t.Helper()
	users := map[string]string{"ada@example.com": "secret"}

	writeErr := func(w http.ResponseWriter, code int, msg string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": code, "message": msg},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/accounts:signInWithPassword", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "web-key" {
			writeErr(w, http.StatusBadRequest, "API key not valid. Please pass a valid API key.")
			return
		}
		var req passwordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.ReturnSecureToken)

		if req.Email == "broken@example.com" {
			writeErr(w, http.StatusInternalServerError, "INTERNAL")
			return
		}
		if users[req.Email] != req.Password {
			writeErr(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
			return
		}
		_ = json.NewEncoder(w).Encode(passwordResponse{
			LocalID: "uid-ada", Email: req.Email, IDToken: "id-token", RefreshToken: "refresh",
		})
	})
	mux.HandleFunc("POST /v1/accounts:signUp", func(w http.ResponseWriter, r *http.Request) {
		var req passwordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if _, ok := users[req.Email]; ok {
			writeErr(w, http.StatusBadRequest, "EMAIL_EXISTS")
			return
		}
		if len(req.Password) < 6 {
			writeErr(w, http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters")
			return
		}
		_ = json.NewEncoder(w).Encode(passwordResponse{LocalID: "uid-new", Email: req.Email, IDToken: "new-token"})
	})

	mux.HandleFunc("POST /v1/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "web-key", r.URL.Query().Get("key"))
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))

		switch r.PostForm.Get("refresh_token") {
		case "refresh":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"user_id": "uid-ada", "id_token": "fresh-token", "refresh_token": "rotated", "expires_in": "3600",
			})
		case "":
			writeErr(w, http.StatusBadRequest, "MISSING_REFRESH_TOKEN")
		case "disabled":
			writeErr(w, http.StatusBadRequest, "USER_DISABLED")
		case "broken":
			writeErr(w, http.StatusServiceUnavailable, "UNAVAILABLE")
		default:
			writeErr(w, http.StatusBadRequest, "INVALID_REFRESH_TOKEN")
		}
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestFirebaseIdentity_SignIn(t *testing.T) {
	ts := identityToolkit(t)
	idp := NewFirebaseIdentity("web-key", ts.URL+"/v1", ts.Client())
	ctx := context.Background()

	creds, err := idp.SignIn(ctx, "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, Credentials{UID: "uid-ada", Email: "ada@example.com", IDToken: "id-token", RefreshToken: "refresh"}, creds)

	_, err = idp.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = idp.SignIn(ctx, "broken@example.com", "x")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.True(t, IsTransient(err))
}

func TestFirebaseIdentity_BadAPIKey(t *testing.T) {
	ts := identityToolkit(t)
	idp := NewFirebaseIdentity("wrong-key", ts.URL+"/v1", ts.Client())

	_, err := idp.SignIn(context.Background(), "ada@example.com", "secret")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "identity_provider", statusErr.Type)
	assert.Equal(t, ReasonValidation, OutcomeOf(err).Reason)
}

func TestFirebaseIdentity_SignUp(t *testing.T) {
	ts := identityToolkit(t)
	idp := NewFirebaseIdentity("web-key", ts.URL+"/v1", ts.Client())
	ctx := context.Background()

	creds, err := idp.SignUp(ctx, "new@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "uid-new", creds.UID)

	_, err = idp.SignUp(ctx, "ada@example.com", "longenough")
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = idp.SignUp(ctx, "weak@example.com", "123")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Contains(t, statusErr.Message, "WEAK_PASSWORD")
}

func TestFirebaseIdentity_Refresh(t *testing.T) {
	ts := identityToolkit(t)
	idp := NewFirebaseIdentity("web-key", ts.URL+"/v1", ts.Client(), WithSecureTokenURL(ts.URL+"/v1/"))
	ctx := context.Background()

	creds, err := idp.Refresh(ctx, "refresh")
	require.NoError(t, err)
	assert.Equal(t, Credentials{UID: "uid-ada", IDToken: "fresh-token", RefreshToken: "rotated"}, creds)

	for _, token := range []string{"revoked", "", "disabled"} {
		_, err = idp.Refresh(ctx, token)
		assert.ErrorIs(t, err, ErrSessionExpired, token)
	}

	_, err = idp.Refresh(ctx, "broken")
	assert.True(t, IsTransient(err))
}

func TestFirebaseIdentity_SignOutIsLocal(t *testing.T) {
	idp := NewFirebaseIdentity("web-key", "http://127.0.0.1:0", nil)
	assert.NoError(t, idp.SignOut(context.Background(), Credentials{UID: "u1"}))
}
