package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mewannirundakaperera/SkillNet-sub001/services"
)

// MembershipController handles HTTP requests for group memberships
type MembershipController struct {
	Members *services.MembershipService
}

// NewMembershipController creates a new MembershipController instance
func NewMembershipController(members *services.MembershipService) *MembershipController {
	return &MembershipController{Members: members}
}

// AddMember adds the body's user to the group
func (mc *MembershipController) AddMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
	}
	if !decode(w, r, &body) {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	m, err := mc.Members.AddMember(ctx, mux.Vars(r)["groupId"], body.UserID, body.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// RemoveMember removes a user from the group
func (mc *MembershipController) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	vars := mux.Vars(r)
	if err := mc.Members.RemoveMember(ctx, vars["groupId"], vars["userId"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Member removed successfully", "userId": vars["userId"]})
}

// ListMembers returns the members of the group
func (mc *MembershipController) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	members, err := mc.Members.ListMembers(ctx, mux.Vars(r)["groupId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}
