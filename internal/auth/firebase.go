// Package auth verifies identity-provider session tokens and carries the
// verified identity through the request context.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The client signs in with the identity provider (Firebase Auth) and
//     receives a short-lived ID token, an RS256-signed JWT.
//  2. Every protected API call sends "Authorization: Bearer <idToken>".
//  3. RequireAuth / OptionalAuth hand the token to a TokenVerifier.
//  4. FirebaseVerifier checks the signature against Google's published
//     certificates and the standard Firebase claims, then puts the
//     resulting Identity in the request context.
//
// The server never issues tokens and never sees passwords.
//
// FIREBASE ID TOKEN CLAIMS:
//
//	header.alg = RS256, header.kid = one of the published certificate ids
//	aud = <project id>
//	iss = https://securetoken.google.com/<project id>
//	sub = the user's uid (non-empty, at most 128 characters)
//	exp in the future, iat and auth_time not in the future
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified caller behind a bearer token.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
}

// TokenVerifier turns a raw bearer token into a verified Identity.
// The middleware depends on this interface so tests can swap in a fake.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// KeySource resolves a signing key id to its RSA public key.
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// ErrInvalidToken is returned for every token that fails verification.
// The wrapped cause is for logs only and is never shown to callers.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

const issuerPrefix = "https://securetoken.google.com/"

// firebaseClaims is the ID-token payload. jwt.RegisteredClaims covers
// iss/sub/aud/exp/iat; the rest are Firebase-specific.
type firebaseClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
}

// FirebaseVerifier verifies Firebase Authentication ID tokens.
type FirebaseVerifier struct {
	projectID string
	keys      KeySource
	leeway    time.Duration
	now       func() time.Time
}

// VerifierOption customizes a FirebaseVerifier.
type VerifierOption func(*FirebaseVerifier)

// WithLeeway tolerates clock skew between this host and Google.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *FirebaseVerifier) { v.leeway = d }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *FirebaseVerifier) { v.now = now }
}

// NewFirebaseVerifier creates a verifier for tokens issued to projectID.
func NewFirebaseVerifier(projectID string, keys KeySource, opts ...VerifierOption) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("auth: firebase project id is required")
	}
	if keys == nil {
		return nil, errors.New("auth: key source is required")
	}
	v := &FirebaseVerifier{
		projectID: projectID,
		keys:      keys,
		leeway:    5 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify parses and validates an ID token.
//
// VALIDATION CHECKS:
//   - Algorithm is RS256 (jwt.WithValidMethods rejects "none" and HMAC)
//   - Signature matches the certificate named by the kid header
//   - aud, iss and exp match (checked by the jwt library)
//   - iat is not in the future (jwt.WithIssuedAt)
//   - sub and auth_time are checked here
func (v *FirebaseVerifier) Verify(ctx context.Context, tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&firebaseClaims{},
		func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid header")
			}
			return v.keys.PublicKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*firebaseClaims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	if c.Subject == "" || len(c.Subject) > 128 {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if c.AuthTime > 0 && time.Unix(c.AuthTime, 0).After(v.now().Add(v.leeway)) {
		return Identity{}, fmt.Errorf("%w: auth_time in the future", ErrInvalidToken)
	}

	return Identity{
		UID:           c.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Name:          c.Name,
	}, nil
}

var _ TokenVerifier = (*FirebaseVerifier)(nil)
