package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("request not found")
	ErrAlreadyResponded    = errors.New("you have already responded to this request")
	ErrAlreadyClaimed      = errors.New("someone else already accepted this request")
	ErrRequestNoLongerOpen = errors.New("request is no longer open")
)

// ValidationError lists every missing or invalid field
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid or missing fields: " + strings.Join(e.Fields, ", ")
}

// PermissionError is returned when the actor may not issue the event
type PermissionError struct {
	Actor string
	Event Event
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user '%s' is not allowed to %s this request", e.Actor, e.Event)
}

// InvalidTransitionError is returned when no transition row matches the event
type InvalidTransitionError struct {
	From   string
	Event  Event
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s a request in status '%s'", e.Event, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ProvisioningError wraps a meeting provisioner failure. The caller may retry.
type ProvisioningError struct {
	RequestID string
	Err       error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("failed to provision meeting for request '%s': %v", e.RequestID, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Retryable is always true; provisioning failures never change request state
func (e *ProvisioningError) Retryable() bool { return true }

func invalid(from string, ev Event, reason string) error {
	return &InvalidTransitionError{From: from, Event: ev, Reason: reason}
}

func denied(actor string, ev Event) error {
	return &PermissionError{Actor: actor, Event: ev}
}
