package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/collabgrow/collabgrow/internal/apperror"
)

// Reason classifies a failed Outcome.
type Reason string

const (
	ReasonUnauthorized Reason = "unauthorized"
	ReasonNotFound     Reason = "not_found"
	ReasonValidation   Reason = "validation"
	ReasonConflict     Reason = "conflict"
	ReasonRateLimited  Reason = "rate_limited"
	ReasonUnavailable  Reason = "unavailable"
	ReasonInternal     Reason = "internal"
)

// Outcome is the result of a user-facing operation. The zero Reason goes
// with OK; Message is meant to be shown to the user.
type Outcome struct {
	OK      bool
	Reason  Reason
	Message string
}

var success = Outcome{OK: true}

func fail(reason Reason, message string) Outcome {
	return Outcome{Reason: reason, Message: message}
}

// OutcomeOf classifies err. A nil err is OK.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return success
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.Message
		if msg == "" {
			msg = http.StatusText(statusErr.StatusCode)
		}
		switch code := statusErr.StatusCode; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return fail(ReasonUnauthorized, msg)
		case code == http.StatusNotFound:
			return fail(ReasonNotFound, msg)
		case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
			return fail(ReasonValidation, msg)
		case code == http.StatusConflict:
			return fail(ReasonConflict, msg)
		case code == http.StatusTooManyRequests:
			return fail(ReasonRateLimited, "Too many requests, please wait a moment")
		case code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
			return fail(ReasonUnavailable, "The server is unavailable, please try again")
		}
		return fail(ReasonInternal, "Something went wrong on the server")
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrValidation):
			return fail(ReasonValidation, appErr.Message)
		case errors.Is(err, apperror.ErrUnauthorized), errors.Is(err, apperror.ErrForbidden):
			return fail(ReasonUnauthorized, appErr.Message)
		case errors.Is(err, apperror.ErrNotFound):
			return fail(ReasonNotFound, appErr.Message)
		case errors.Is(err, apperror.ErrConflict):
			return fail(ReasonConflict, appErr.Message)
		case errors.Is(err, apperror.ErrRateLimited):
			return fail(ReasonRateLimited, appErr.Message)
		}
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return fail(ReasonUnauthorized, "Incorrect email or password")
	case errors.Is(err, ErrSessionExpired):
		return fail(ReasonUnauthorized, "Your session has expired, please sign in again")
	case errors.Is(err, ErrEmailExists):
		return fail(ReasonConflict, "An account with this email already exists")
	case errors.Is(err, context.Canceled):
		return fail(ReasonUnavailable, "The request was cancelled")
	case IsTransient(err):
		return fail(ReasonUnavailable, "Could not reach the server, please try again")
	}
	return fail(ReasonInternal, "Something went wrong")
}
