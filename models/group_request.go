package models

import "time"

// GroupRequest is a learning request raised inside a group and funded by its participants
type GroupRequest struct {
	GroupRequestID    string     `dynamodbav:"groupRequestId" json:"groupRequestId"` // PK
	CreatorID         string     `dynamodbav:"creatorId" json:"creatorId"`           // Always an implicit participant
	GroupID           string     `dynamodbav:"groupId" json:"groupId"`               // Owning group
	Title             string     `dynamodbav:"title" json:"title"`
	Description       string     `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Subject           string     `dynamodbav:"subject,omitempty" json:"subject,omitempty"`
	Rate              float64    `dynamodbav:"rate" json:"rate"` // Amount each participant pays
	Status            string     `dynamodbav:"status" json:"status"`
	Votes             []string   `dynamodbav:"votes,stringset,omitempty" json:"votes"`       // Users who voted
	Teachers          []string   `dynamodbav:"teachers,stringset,omitempty" json:"teachers"` // Candidate teachers
	SelectedTeacher   string     `dynamodbav:"selectedTeacher,omitempty" json:"selectedTeacher,omitempty"`
	Participants      []string   `dynamodbav:"participants,stringset,omitempty" json:"participants"`         // Explicit participants
	PaidParticipants  []string   `dynamodbav:"paidParticipants,stringset,omitempty" json:"paidParticipants"` // Users who paid
	PaymentDeadline   int64      `dynamodbav:"paymentDeadline,omitempty" json:"paymentDeadline,omitempty"`   // Unix seconds, 0 = unset
	TotalPaid         float64    `dynamodbav:"totalPaid" json:"totalPaid"`
	MinParticipants   int        `dynamodbav:"minParticipants" json:"minParticipants"`
	VoteCount         int        `dynamodbav:"voteCount" json:"voteCount"`               // Cache of Reconcile output
	TeacherCount      int        `dynamodbav:"teacherCount" json:"teacherCount"`         // Cache of Reconcile output
	ParticipantCount  int        `dynamodbav:"participantCount" json:"participantCount"` // Cache of Reconcile output
	PaidCount         int        `dynamodbav:"paidCount" json:"paidCount"`               // Cache of Reconcile output
	MeetingRef        string     `dynamodbav:"meetingRef,omitempty" json:"meetingRef,omitempty"`
	ProvisionAttempts int        `dynamodbav:"provisionAttempts,omitempty" json:"provisionAttempts,omitempty"` // Failed meeting provisioning calls
	CancelReason      string     `dynamodbav:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CancelledBy       string     `dynamodbav:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	RefundStatus      string     `dynamodbav:"refundStatus,omitempty" json:"refundStatus,omitempty"`
	CreatedAt         time.Time  `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time  `dynamodbav:"updatedAt" json:"updatedAt"`
	StartedAt         *time.Time `dynamodbav:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt       *time.Time `dynamodbav:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Deadline returns the payment deadline, zero when none is set
func (g GroupRequest) Deadline() time.Time {
	if g.PaymentDeadline == 0 {
		return time.Time{}
	}
	return time.Unix(g.PaymentDeadline, 0).UTC()
}

// GroupRequestsTable is the DynamoDB table name for group requests
const GroupRequestsTable = "GroupRequests"

// GroupMember is a read-only membership row maintained by the group service
type GroupMember struct {
	MembershipID string    `dynamodbav:"membershipId" json:"membershipId"` // PK: "<groupId>#<userId>"
	GroupID      string    `dynamodbav:"groupId" json:"groupId"`
	UserID       string    `dynamodbav:"userId" json:"userId"`
	DisplayName  string    `dynamodbav:"displayName,omitempty" json:"displayName,omitempty"`
	JoinedAt     time.Time `dynamodbav:"joinedAt" json:"joinedAt"`
}

// MembershipKey builds the membership id for a group and user
func MembershipKey(groupID, userID string) string {
	return groupID + "#" + userID
}

// GroupMembersTable is the DynamoDB table name for group memberships
const GroupMembersTable = "GroupMembers"
