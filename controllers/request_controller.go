package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"
)

// RequestController handles HTTP requests for one-to-one requests
type RequestController struct {
	Requests *services.RequestService
}

// NewRequestController creates a new RequestController instance
func NewRequestController(requests *services.RequestService) *RequestController {
	return &RequestController{Requests: requests}
}

// CreateRequest stores a draft for the actor
func (rc *RequestController) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID string `json:"actorId"`
		lifecycle.RequestInput
		Publish bool `json:"publish"`
	}
	if !decode(w, r, &body) {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	req, err := rc.Requests.Create(ctx, body.ActorID, body.RequestInput)
	if err != nil {
		writeError(w, err)
		return
	}
	if body.Publish {
		if req, err = rc.Requests.Publish(ctx, req.RequestID, body.ActorID); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetRequest returns one request
func (rc *RequestController) GetRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	req, err := rc.Requests.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListOpen returns the open requests the viewer may answer
func (rc *RequestController) ListOpen(w http.ResponseWriter, r *http.Request) {
	viewer := r.URL.Query().Get("viewerId")
	if viewer == "" {
		writeError(w, &lifecycle.ValidationError{Fields: []string{"viewerId"}})
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	reqs, err := rc.Requests.ListOpen(ctx, viewer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ListByOwner returns every request of an owner
func (rc *RequestController) ListByOwner(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	reqs, err := rc.Requests.ListByOwner(ctx, mux.Vars(r)["ownerId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ListResponses returns the responses recorded on a request
func (rc *RequestController) ListResponses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	id := mux.Vars(r)["id"]
	if _, err := rc.Requests.Get(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	responses, err := rc.Requests.ListResponses(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

// Publish opens a draft
func (rc *RequestController) Publish(w http.ResponseWriter, r *http.Request) {
	rc.event(w, r, func(ctx context.Context, id string, body actorBody) (models.Request, error) {
		return rc.Requests.Publish(ctx, id, body.ActorID)
	})
}

// Respond records a responder's decision
func (rc *RequestController) Respond(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID  string `json:"actorId"`
		Decision string `json:"decision"`
		Message  string `json:"message"`
	}
	if !decode(w, r, &body) {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	req, err := rc.Requests.Respond(ctx, mux.Vars(r)["id"], body.ActorID, body.Decision, body.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Complete ends the session
func (rc *RequestController) Complete(w http.ResponseWriter, r *http.Request) {
	rc.event(w, r, func(ctx context.Context, id string, body actorBody) (models.Request, error) {
		return rc.Requests.Complete(ctx, id, body.ActorID)
	})
}

// Archive archives a completed request
func (rc *RequestController) Archive(w http.ResponseWriter, r *http.Request) {
	rc.event(w, r, func(ctx context.Context, id string, body actorBody) (models.Request, error) {
		return rc.Requests.Archive(ctx, id, body.ActorID)
	})
}

// Cancel cancels the request
func (rc *RequestController) Cancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID string `json:"actorId"`
		Reason  string `json:"reason"`
	}
	if !decode(w, r, &body) {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	req, err := rc.Requests.Cancel(ctx, mux.Vars(r)["id"], body.ActorID, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeleteRequest removes a draft or unanswered request; the actor comes from ?actorId=
func (rc *RequestController) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	id := mux.Vars(r)["id"]
	if err := rc.Requests.Delete(ctx, id, r.URL.Query().Get("actorId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Request deleted successfully", "requestId": id})
}

// event decodes an actor body and runs fn under the request timeout
func (rc *RequestController) event(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string, body actorBody) (models.Request, error)) {
	var body actorBody
	if !decode(w, r, &body) {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	req, err := fn(ctx, mux.Vars(r)["id"], body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
