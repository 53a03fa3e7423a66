package models

import "time"

// Request is a one-to-one learning request stored in DynamoDB
type Request struct {
	RequestID       string     `dynamodbav:"requestId" json:"requestId"`                                 // PK
	OwnerID         string     `dynamodbav:"ownerId" json:"ownerId"`                                     // Learner who created it
	Topic           string     `dynamodbav:"topic,omitempty" json:"topic,omitempty"`                     // Short title
	Description     string     `dynamodbav:"description,omitempty" json:"description,omitempty"`         // Free text
	Subject         string     `dynamodbav:"subject,omitempty" json:"subject,omitempty"`                 // Subject area
	PaymentAmount   float64    `dynamodbav:"paymentAmount" json:"paymentAmount"`                         // Offered amount
	PreferredDate   string     `dynamodbav:"preferredDate,omitempty" json:"preferredDate,omitempty"`     // YYYY-MM-DD
	PreferredTime   string     `dynamodbav:"preferredTime,omitempty" json:"preferredTime,omitempty"`     // HH:MM
	DurationMinutes int        `dynamodbav:"durationMinutes,omitempty" json:"durationMinutes,omitempty"` // Session length
	Status          string     `dynamodbav:"status" json:"status"`                                       // draft, open, active, completed, archived, cancelled
	Responses       []string   `dynamodbav:"responses,omitempty" json:"responses"`                       // Ordered Response ids
	ResponseCount   int        `dynamodbav:"responseCount" json:"responseCount"`                         // Cached len(Responses)
	AcceptedBy      string     `dynamodbav:"acceptedBy,omitempty" json:"acceptedBy,omitempty"`           // Winning responder
	AcceptedAt      *time.Time `dynamodbav:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	MeetingRef      string     `dynamodbav:"meetingRef,omitempty" json:"meetingRef,omitempty"` // Meeting id once provisioned
	CancelReason    string     `dynamodbav:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CreatedAt       time.Time  `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `dynamodbav:"updatedAt" json:"updatedAt"`
	CompletedAt     *time.Time `dynamodbav:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// RequestsTable is the DynamoDB table name for one-to-one requests
const RequestsTable = "Requests"
