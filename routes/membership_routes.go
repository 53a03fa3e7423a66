package routes

import (
	"github.com/mewannirundakaperera/SkillNet-sub001/controllers"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"

	"github.com/gorilla/mux"
)

// RegisterMembershipRoutes sets up group membership routes under /api/groups
func RegisterMembershipRoutes(r *mux.Router, membershipService *services.MembershipService) {
	controller := controllers.NewMembershipController(membershipService)

	groupRouter := r.PathPrefix("/api/groups/{groupId}/members").Subrouter()

	groupRouter.HandleFunc("", controller.ListMembers).Methods("GET")
	groupRouter.HandleFunc("", controller.AddMember).Methods("POST")
	groupRouter.HandleFunc("/{userId}", controller.RemoveMember).Methods("DELETE")
}
