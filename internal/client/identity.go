package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials means the identity provider rejected the
	// email/password pair.
	ErrInvalidCredentials = errors.New("identity: invalid email or password")
	// ErrEmailExists means sign-up was attempted for a registered email.
	ErrEmailExists = errors.New("identity: email already registered")
	// ErrSessionExpired means the refresh token was revoked, expired, or
	// belongs to a disabled or deleted account. Only a new sign-in helps.
	ErrSessionExpired = errors.New("identity: session expired")
)

// Credentials is what a successful sign-in yields.
type Credentials struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
}

// IdentityProvider signs users in and out. The server only ever sees the
// resulting ID token.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (Credentials, error)
	SignUp(ctx context.Context, email, password string) (Credentials, error)
	// Refresh trades a refresh token for a fresh ID token. The returned
	// Credentials carry no Email.
	Refresh(ctx context.Context, refreshToken string) (Credentials, error)
	SignOut(ctx context.Context, creds Credentials) error
}

const (
	// IdentityToolkitURL is the Firebase Auth REST endpoint.
	IdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	// SecureTokenURL exchanges refresh tokens for ID tokens.
	SecureTokenURL = "https://securetoken.googleapis.com/v1"
)

// FirebaseIdentity signs in with email and password through the Identity
// Toolkit REST API, keyed by the web API key of the Firebase project.
type FirebaseIdentity struct {
	apiKey         string
	baseURL        string
	secureTokenURL string
	http           *http.Client
}

type FirebaseOption func(*FirebaseIdentity)

// WithSecureTokenURL overrides SecureTokenURL.
func WithSecureTokenURL(u string) FirebaseOption {
	return func(f *FirebaseIdentity) { f.secureTokenURL = strings.TrimRight(u, "/") }
}

// NewFirebaseIdentity returns a provider for apiKey. baseURL is usually
// IdentityToolkitURL; tests point it at an httptest server.
func NewFirebaseIdentity(apiKey, baseURL string, httpClient *http.Client, opts ...FirebaseOption) *FirebaseIdentity {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	f := &FirebaseIdentity{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		secureTokenURL: SecureTokenURL,
		http:           httpClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type passwordResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

func (f *FirebaseIdentity) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	return f.password(ctx, "accounts:signInWithPassword", email, password)
}

func (f *FirebaseIdentity) SignUp(ctx context.Context, email, password string) (Credentials, error) {
	return f.password(ctx, "accounts:signUp", email, password)
}

// SignOut is local: ID tokens are stateless and simply expire.
func (f *FirebaseIdentity) SignOut(context.Context, Credentials) error {
	return nil
}

func (f *FirebaseIdentity) password(ctx context.Context, method, email, password string) (Credentials, error) {
	buf, err := json.Marshal(passwordRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return Credentials{}, fmt.Errorf("identity: encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s?key=%s", f.baseURL, method, url.QueryEscape(f.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return Credentials{}, fmt.Errorf("identity: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return Credentials{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credentials{}, identityError(resp, passwordErrors)
	}

	var out passwordResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Credentials{}, fmt.Errorf("identity: decoding response: %w", err)
	}
	if out.LocalID == "" || out.IDToken == "" {
		return Credentials{}, errors.New("identity: response is missing localId or idToken")
	}
	return Credentials{
		UID:          out.LocalID,
		Email:        out.Email,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
	}, nil
}

type refreshResponse struct {
	UserID       string `json:"user_id"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

func (f *FirebaseIdentity) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	endpoint := fmt.Sprintf("%s/token?key=%s", f.secureTokenURL, url.QueryEscape(f.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Credentials{}, fmt.Errorf("identity: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.http.Do(req)
	if err != nil {
		return Credentials{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credentials{}, identityError(resp, refreshErrors)
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Credentials{}, fmt.Errorf("identity: decoding response: %w", err)
	}
	if out.UserID == "" || out.IDToken == "" {
		return Credentials{}, errors.New("identity: response is missing user_id or id_token")
	}
	return Credentials{UID: out.UserID, IDToken: out.IDToken, RefreshToken: out.RefreshToken}, nil
}

var passwordErrors = map[string]error{
	"EMAIL_NOT_FOUND":           ErrInvalidCredentials,
	"INVALID_PASSWORD":          ErrInvalidCredentials,
	"INVALID_LOGIN_CREDENTIALS": ErrInvalidCredentials,
	"USER_DISABLED":             ErrInvalidCredentials,
	"INVALID_EMAIL":             ErrInvalidCredentials,
	"MISSING_PASSWORD":          ErrInvalidCredentials,
	"EMAIL_EXISTS":              ErrEmailExists,
}

var refreshErrors = map[string]error{
	"TOKEN_EXPIRED":         ErrSessionExpired,
	"INVALID_REFRESH_TOKEN": ErrSessionExpired,
	"MISSING_REFRESH_TOKEN": ErrSessionExpired,
	"USER_DISABLED":         ErrSessionExpired,
	"USER_NOT_FOUND":        ErrSessionExpired,
}

// identityError maps the provider's {"error":{"message":"CODE : detail"}}
// body to known[CODE], falling back to a StatusError.
func identityError(resp *http.Response, known map[string]error) error {
	var payload struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)

	code, _, _ := strings.Cut(payload.Error.Message, " ")
	if err, ok := known[code]; ok {
		return err
	}
	return &StatusError{StatusCode: resp.StatusCode, Type: "identity_provider", Message: payload.Error.Message}
}
