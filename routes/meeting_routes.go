package routes

import (
	"github.com/mewannirundakaperera/SkillNet-sub001/controllers"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"

	"github.com/gorilla/mux"
)

// RegisterMeetingRoutes sets up meeting lookups under /api/meetings
func RegisterMeetingRoutes(r *mux.Router, meetingService *services.MeetingService) {
	controller := controllers.NewMeetingController(meetingService)

	r.HandleFunc("/api/meetings/{requestId}", controller.GetMeeting).Methods("GET")
}
