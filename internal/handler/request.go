package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/auth"
	"github.com/collabgrow/collabgrow/internal/service"
)

// maxBodyBytes caps request bodies. Profiles are the largest documents.
const maxBodyBytes = 1 << 20

// decodeObject reads a JSON object into dst.
//
// An empty body, `null`, `{}` and anything that is not a JSON object are
// all rejected with a validation error before dst is touched.
func decodeObject(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperror.ValidationFailed("body", "request body is too large or unreadable")
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return apperror.ValidationFailed("body", "request body is required")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return apperror.ValidationFailed("body", "request body must be a JSON object")
	}
	if len(fields) == 0 {
		return apperror.ValidationFailed("body", "request body is empty")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// pathParam returns the decoded path value named key.
//
// chi matches routes against the escaped path whenever the request has one
// (r.URL.RawPath), so a segment sent as "ada%40example.com" arrives still
// encoded and has to be unescaped here.
func pathParam(r *http.Request, key string) (string, error) {
	v := r.PathValue(key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return "", apperror.ValidationFailed(key, fmt.Sprintf("%s is not a valid path segment", key))
	}
	return decoded, nil
}

// callerFrom converts the verified identity in the request context (if
// any) into the service layer's Caller.
func callerFrom(r *http.Request) *service.Caller {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	return &service.Caller{UID: id.UID, Email: id.Email, EmailVerified: id.EmailVerified, Name: id.Name}
}

// queryInt reads a non-negative integer query parameter. Missing or
// malformed values yield 0 so the service default applies.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
