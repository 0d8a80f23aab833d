package types

import (
	"errors"
	"fmt"
	"time"
)

// Error classes. Every typed error below unwraps to one of these, so callers
// branch with errors.Is and read detail with errors.As.
var (
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrOutsideWindow = errors.New("outside validity window")
	ErrNotYetValid   = errors.New("not yet valid")
	ErrExpired       = errors.New("expired")
	ErrDelivery      = errors.New("delivery failed")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports a transition attempted from the wrong state. Status
// is the state the request is actually in.
type ConflictError struct {
	ID     string
	Op     string
	Status Status
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s %s: already %s", e.Op, e.ID, e.Status)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

type ForbiddenError struct {
	Actor  Actor
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s %q may not %s", e.Actor.Role, e.Actor.ID, e.Action)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// WindowError rejects a pass redeemed outside [Start, End]. Reason is
// ErrNotYetValid or ErrExpired.
type WindowError struct {
	Reason error
	Start  *time.Time
	End    *time.Time
	At     time.Time
}

func (e *WindowError) Error() string {
	return "pass " + e.Reason.Error()
}

func (e *WindowError) Unwrap() []error { return []error{e.Reason, ErrOutsideWindow} }

// DeliveryError is logged by the notification path and never returned to a
// lifecycle caller.
type DeliveryError struct {
	Channel string // "realtime" | "push" | "queue"
	Target  string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s delivery to %s failed", e.Channel, e.Target)
	}
	return fmt.Sprintf("%s delivery to %s: %v", e.Channel, e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDelivery}
	}
	return []error{ErrDelivery, e.Err}
}
