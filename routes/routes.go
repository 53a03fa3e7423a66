package routes

import (
	"github.com/mewannirundakaperera/SkillNet-sub001/controllers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up the service routes of the application
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
}
