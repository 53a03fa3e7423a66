package controllers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"
)

// MeetingController serves provisioned meetings
type MeetingController struct {
	Meetings *services.MeetingService
}

// NewMeetingController creates a new MeetingController instance
func NewMeetingController(meetings *services.MeetingService) *MeetingController {
	return &MeetingController{Meetings: meetings}
}

type meetingResponse struct {
	models.Meeting
	RosterURL string `json:"rosterUrl,omitempty"`
}

// GetMeeting returns the meeting of a request with a presigned roster link when archived
func (mc *MeetingController) GetMeeting(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	m, err := mc.Meetings.Get(ctx, mux.Vars(r)["requestId"])
	if err != nil {
		writeError(w, err)
		return
	}
	url, err := mc.Meetings.RosterURL(ctx, m)
	if err != nil {
		log.Printf("⚠️ Failed to presign roster of %s: %v", m.MeetingID, err)
	}
	writeJSON(w, http.StatusOK, meetingResponse{Meeting: m, RosterURL: url})
}
