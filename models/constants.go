package models

// ✅ Request types (one-to-one, group)
const (
	RequestTypeOneToOne = "one-to-one"
	RequestTypeGroup    = "group"
)

// ✅ One-to-one request statuses
const (
	StatusDraft     = "draft"
	StatusOpen      = "open"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
	StatusCancelled = "cancelled"
)

// ✅ Group request statuses
const (
	GroupStatusPending         = "pending"
	GroupStatusVotingOpen      = "voting_open"
	GroupStatusAccepted        = "accepted"
	GroupStatusFunding         = "funding"
	GroupStatusPaid            = "paid"
	GroupStatusPaymentComplete = "payment_complete" // written by older clients, treated like paid
	GroupStatusInProgress      = "in_progress"
	GroupStatusCompleted       = "completed"
	GroupStatusCancelled       = "cancelled"
)

// ✅ Response decisions
const (
	ResponseAccepted      = "accepted"
	ResponseDeclined      = "declined"
	ResponseNotInterested = "not_interested"
)

// ✅ Meeting statuses and roles
const (
	MeetingStatusScheduled = "scheduled"
	MeetingStatusActive    = "active"
	MeetingStatusCompleted = "completed"

	RoleOwner       = "owner"
	RoleTeacher     = "teacher"
	RoleParticipant = "participant"
)

// RefundStatusPending marks a cancelled group request that collected payments.
const RefundStatusPending = "pending"
