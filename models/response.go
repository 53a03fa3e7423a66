package models

import "time"

// Response is one user's answer to a one-to-one request
type Response struct {
	ResponseID  string    `dynamodbav:"responseId" json:"responseId"`               // PK: "<requestId>#<responderId>"
	RequestID   string    `dynamodbav:"requestId" json:"requestId"`                 // Parent request
	ResponderID string    `dynamodbav:"responderId" json:"responderId"`             // Teacher answering
	Status      string    `dynamodbav:"status" json:"status"`                       // accepted, declined, not_interested
	Message     string    `dynamodbav:"message,omitempty" json:"message,omitempty"` // Optional note to the owner
	CreatedAt   time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// ResponseKey builds the response id; one response per (request, responder) pair.
func ResponseKey(requestID, responderID string) string {
	return requestID + "#" + responderID
}

// ResponsesTable is the DynamoDB table name for responses
const ResponsesTable = "Responses"

// HiddenRequest hides a request from one user's open listing
type HiddenRequest struct {
	HiddenID  string    `dynamodbav:"hiddenId" json:"hiddenId"` // PK: "<userId>#<requestId>"
	UserID    string    `dynamodbav:"userId" json:"userId"`
	RequestID string    `dynamodbav:"requestId" json:"requestId"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// HiddenKey builds the hidden-entry id for a user and request
func HiddenKey(userID, requestID string) string {
	return userID + "#" + requestID
}

// HiddenRequestsTable is the DynamoDB table name for per-user hide entries
const HiddenRequestsTable = "HiddenRequests"
