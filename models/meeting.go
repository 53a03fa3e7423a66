package models

import "time"

// Meeting is the provisioned session room for an accepted request
type Meeting struct {
	MeetingID    string               `dynamodbav:"meetingId" json:"meetingId"`     // PK: "mtg_<requestId>"
	RequestID    string               `dynamodbav:"requestId" json:"requestId"`     // One meeting per request
	RequestType  string               `dynamodbav:"requestType" json:"requestType"` // "one-to-one" or "group"
	RoomID       string               `dynamodbav:"roomId" json:"roomId"`
	JoinURL      string               `dynamodbav:"joinUrl" json:"joinUrl"`
	Participants []MeetingParticipant `dynamodbav:"participants" json:"participants"`
	Status       string               `dynamodbav:"status" json:"status"`                           // scheduled, active, completed
	RosterKey    string               `dynamodbav:"rosterKey,omitempty" json:"rosterKey,omitempty"` // S3 key of the archived roster
	CreatedAt    time.Time            `dynamodbav:"createdAt" json:"createdAt"`
	EndedAt      *time.Time           `dynamodbav:"endedAt,omitempty" json:"endedAt,omitempty"`
}

// MeetingParticipant is one roster entry of a meeting
type MeetingParticipant struct {
	UserID   string     `dynamodbav:"userId" json:"userId"`
	Role     string     `dynamodbav:"role" json:"role"` // owner, teacher, participant
	JoinedAt *time.Time `dynamodbav:"joinedAt,omitempty" json:"joinedAt,omitempty"`
}

// MeetingKey builds the meeting id for a request
func MeetingKey(requestID string) string {
	return "mtg_" + requestID
}

// MeetingsTable is the DynamoDB table name for meetings
const MeetingsTable = "Meetings"
