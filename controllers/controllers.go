package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"
)

// requestTimeout bounds the store work of one HTTP call
const requestTimeout = 5 * time.Second

// ErrorResponse is the body of every failed call
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// actorBody is the minimal body of an event endpoint
type actorBody struct {
	ActorID string `json:"actorId"`
}

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the SkillNet API"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// decode reads a JSON body; an empty body leaves v untouched
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{Code: "invalid_payload", Message: "Invalid request payload"}})
		return false
	}
	return true
}

func withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// StatusFor maps a service error to its HTTP status and error code
func StatusFor(err error) (int, string) {
	var (
		verr *lifecycle.ValidationError
		perr *lifecycle.PermissionError
		terr *lifecycle.InvalidTransitionError
		prov *lifecycle.ProvisioningError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &perr), errors.Is(err, services.ErrNotMember):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &prov):
		return http.StatusServiceUnavailable, "provisioning_failed"
	case errors.As(err, &terr):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, lifecycle.ErrAlreadyResponded):
		return http.StatusConflict, "already_responded"
	case errors.Is(err, lifecycle.ErrAlreadyClaimed):
		return http.StatusConflict, "already_claimed"
	case errors.Is(err, lifecycle.ErrRequestNoLongerOpen):
		return http.StatusConflict, "request_no_longer_open"
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	body := ErrorBody{Code: code, Message: err.Error()}

	var verr *lifecycle.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		log.Printf("⚠️ %v", err)
	case status >= http.StatusInternalServerError:
		log.Printf("❌ %v", err)
		body.Message = "Internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: body})
}
