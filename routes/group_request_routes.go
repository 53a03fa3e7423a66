package routes

import (
	"github.com/mewannirundakaperera/SkillNet-sub001/controllers"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"

	"github.com/gorilla/mux"
)

// RegisterGroupRequestRoutes sets up group request routes under /api/group-requests
func RegisterGroupRequestRoutes(r *mux.Router, groupService *services.GroupRequestService) {
	controller := controllers.NewGroupRequestController(groupService)

	groupRouter := r.PathPrefix("/api/group-requests").Subrouter()

	groupRouter.HandleFunc("", controller.CreateGroupRequest).Methods("POST")
	groupRouter.HandleFunc("", controller.ListGroupRequests).Methods("GET")
	groupRouter.HandleFunc("/{id}", controller.GetGroupRequest).Methods("GET")
	groupRouter.HandleFunc("/{id}/select-teacher", controller.SelectTeacher).Methods("POST")
	groupRouter.HandleFunc("/{id}/cancel", controller.Cancel).Methods("POST")

	// Single-actor events
	groupRouter.HandleFunc("/{id}/vote", controller.Event(groupService.Vote)).Methods("POST")
	groupRouter.HandleFunc("/{id}/unvote", controller.Event(groupService.Unvote)).Methods("POST")
	groupRouter.HandleFunc("/{id}/teach", controller.Event(groupService.ApplyToTeach)).Methods("POST")
	groupRouter.HandleFunc("/{id}/withdraw-teaching", controller.Event(groupService.WithdrawTeaching)).Methods("POST")
	groupRouter.HandleFunc("/{id}/join", controller.Event(groupService.Join)).Methods("POST")
	groupRouter.HandleFunc("/{id}/leave", controller.Event(groupService.Leave)).Methods("POST")
	groupRouter.HandleFunc("/{id}/pay", controller.Event(groupService.Pay)).Methods("POST")
	groupRouter.HandleFunc("/{id}/start", controller.Event(groupService.MarkStarted)).Methods("POST")
	groupRouter.HandleFunc("/{id}/complete", controller.Event(groupService.Complete)).Methods("POST")
}
