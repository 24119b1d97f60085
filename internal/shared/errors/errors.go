// Package errors defines the application error kinds. Transient versus
// semantic distinction is carried by the kind, never by message parsing.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind string

const (
	// KindTransientRouter covers timeouts, dropped connections and an open
	// circuit breaker. Callers must not update DB state assuming success;
	// the next reconciliation tick retries.
	KindTransientRouter Kind = "transient_router"

	// KindRouterSemantic covers router-side rejections such as "profile not
	// found" or "no id on entry". Not retriable and does not open the breaker.
	KindRouterSemantic Kind = "router_semantic"

	// KindIdentityUnresolved means no MAC could be resolved for an IP.
	KindIdentityUnresolved Kind = "identity_unresolved"

	// KindDeviceLimit signals the per-user device cap was reached.
	KindDeviceLimit Kind = "device_limit"

	// KindDevicePendingAuth signals a device awaiting explicit authorization.
	KindDevicePendingAuth Kind = "device_pending_auth"

	// KindConflict covers ownership conflicts, e.g. a MAC already bound to
	// another approved active user without a takeover flag.
	KindConflict Kind = "conflict"

	// KindCacheUnavailable means the shared cache could not be reached; the
	// system degrades rather than fails.
	KindCacheUnavailable Kind = "cache_unavailable"

	// KindSchedulerOverrun means a task exceeded its wall budget and returned
	// partial results.
	KindSchedulerOverrun Kind = "scheduler_overrun"

	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal_error"
)

// AppError is the uniform application error carrying its kind and context.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func NewTransientRouter(message string, err error) *AppError {
	return Wrap(KindTransientRouter, message, err)
}

func NewRouterSemantic(message string, err error) *AppError {
	return Wrap(KindRouterSemantic, message, err)
}

func NewIdentityUnresolved(message string) *AppError {
	return New(KindIdentityUnresolved, message)
}

func NewDeviceLimit(message string) *AppError {
	return New(KindDeviceLimit, message)
}

func NewDevicePendingAuth(message string) *AppError {
	return New(KindDevicePendingAuth, message)
}

func NewConflict(message string) *AppError {
	return New(KindConflict, message)
}

func NewCacheUnavailable(message string, err error) *AppError {
	return Wrap(KindCacheUnavailable, message, err)
}

func NewValidation(message string) *AppError {
	return New(KindValidation, message)
}

func NewNotFound(message string) *AppError {
	return New(KindNotFound, message)
}

func NewInternal(message string, err error) *AppError {
	return Wrap(KindInternal, message, err)
}

// KindOf returns the kind of err, or KindInternal for plain errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func IsTransientRouter(err error) bool {
	return IsKind(err, KindTransientRouter)
}

func IsConflict(err error) bool {
	return IsKind(err, KindConflict)
}

func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}
