package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"
)

// GroupRequestController handles HTTP requests for group requests
type GroupRequestController struct {
	Groups *services.GroupRequestService
}

// NewGroupRequestController creates a new GroupRequestController instance
func NewGroupRequestController(groups *services.GroupRequestService) *GroupRequestController {
	return &GroupRequestController{Groups: groups}
}

type groupEvent func(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error)

// CreateGroupRequest stores a pending group request
func (gc *GroupRequestController) CreateGroupRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID string `json:"actorId"`
		lifecycle.GroupRequestInput
	}
	if !decode(w, r, &body) {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	view, err := gc.Groups.Create(ctx, body.ActorID, body.GroupRequestInput)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetGroupRequest returns the reconciled view of one request
func (gc *GroupRequestController) GetGroupRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	view, err := gc.Groups.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListGroupRequests returns the requests of ?groupId=
func (gc *GroupRequestController) ListGroupRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	views, err := gc.Groups.ListByGroup(ctx, r.URL.Query().Get("groupId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// SelectTeacher opens funding
func (gc *GroupRequestController) SelectTeacher(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID       string  `json:"actorId"`
		TeacherID     string  `json:"teacherId"`
		DeadlineHours float64 `json:"deadlineHours"`
	}
	if !decode(w, r, &body) {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	view, err := gc.Groups.SelectTeacher(ctx, mux.Vars(r)["id"], body.ActorID, body.TeacherID, body.DeadlineHours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Cancel cancels the request with an optional reason
func (gc *GroupRequestController) Cancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID string `json:"actorId"`
		Reason  string `json:"reason"`
	}
	if !decode(w, r, &body) {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	view, err := gc.Groups.Cancel(ctx, mux.Vars(r)["id"], body.ActorID, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Event adapts a single-actor service event to a handler
func (gc *GroupRequestController) Event(fn groupEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body actorBody
		if !decode(w, r, &body) {
			return
		}
		ctx, cancel := withTimeout(r)
		defer cancel()

		view, err := fn(ctx, mux.Vars(r)["id"], body.ActorID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
