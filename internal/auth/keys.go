package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GoogleCertsURL publishes the x509 certificates that sign Firebase ID tokens.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

// CertKeySource fetches Google's signing certificates and caches them for as
// long as the response's Cache-Control max-age allows.
//
// CACHING:
// Google rotates these keys every few hours and publishes the overlap, so
// a kid that is missing from a fresh cache is simply an invalid token.
// Only one goroutine refreshes at a time; the rest wait on the mutex and
// then reuse the refreshed map.
type CertKeySource struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

// NewCertKeySource creates a source that reads certificates from url.
// An empty url means GoogleCertsURL; a nil client means a 10s-timeout client.
func NewCertKeySource(url string, client *http.Client) *CertKeySource {
	if url == "" {
		url = GoogleCertsURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CertKeySource{url: url, client: client, now: time.Now}
}

// PublicKey returns the key for kid, refreshing the cache if it has expired.
func (s *CertKeySource) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys == nil || !s.now().Before(s.expires) {
		if err := s.refresh(ctx); err != nil {
			return nil, err
		}
	}

	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("auth: unknown signing key %q", kid)
	}
	return key, nil
}

// refresh must be called with s.mu held.
func (s *CertKeySource) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("auth: building cert request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: fetching signing certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: fetching signing certs: status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("auth: decoding signing certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemCert := range certs {
		// ParseRSAPublicKeyFromPEM accepts both PUBLIC KEY and CERTIFICATE blocks.
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemCert))
		if err != nil {
			return fmt.Errorf("auth: parsing cert %q: %w", kid, err)
		}
		keys[kid] = key
	}

	s.keys = keys
	s.expires = s.now().Add(maxAge(resp.Header.Get("Cache-Control")))
	return nil
}

// maxAge extracts max-age from a Cache-Control header. Absent or malformed
// values fall back to one minute.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if v, ok := strings.CutPrefix(directive, "max-age="); ok {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return time.Minute
}

// StaticKeySource serves a fixed set of keys. Used by tests and by
// deployments that pin keys out of band.
type StaticKeySource map[string]*rsa.PublicKey

func (s StaticKeySource) PublicKey(_ context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := s[kid]
	if !ok {
		return nil, fmt.Errorf("auth: unknown signing key %q", kid)
	}
	return key, nil
}

var (
	_ KeySource = (*CertKeySource)(nil)
	_ KeySource = StaticKeySource(nil)
)
