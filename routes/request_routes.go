package routes

import (
	"github.com/mewannirundakaperera/SkillNet-sub001/controllers"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"

	"github.com/gorilla/mux"
)

// RegisterRequestRoutes sets up one-to-one request routes under /api/requests
func RegisterRequestRoutes(r *mux.Router, requestService *services.RequestService) {
	controller := controllers.NewRequestController(requestService)

	requestRouter := r.PathPrefix("/api/requests").Subrouter()

	requestRouter.HandleFunc("", controller.CreateRequest).Methods("POST")
	requestRouter.HandleFunc("/open", controller.ListOpen).Methods("GET")
	requestRouter.HandleFunc("/owner/{ownerId}", controller.ListByOwner).Methods("GET")
	requestRouter.HandleFunc("/{id}", controller.GetRequest).Methods("GET")
	requestRouter.HandleFunc("/{id}", controller.DeleteRequest).Methods("DELETE")
	requestRouter.HandleFunc("/{id}/responses", controller.ListResponses).Methods("GET")
	requestRouter.HandleFunc("/{id}/publish", controller.Publish).Methods("POST")
	requestRouter.HandleFunc("/{id}/respond", controller.Respond).Methods("POST")
	requestRouter.HandleFunc("/{id}/complete", controller.Complete).Methods("POST")
	requestRouter.HandleFunc("/{id}/archive", controller.Archive).Methods("POST")
	requestRouter.HandleFunc("/{id}/cancel", controller.Cancel).Methods("POST")
}
