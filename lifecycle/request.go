package lifecycle

import (
	"strings"
	"time"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// RequestInput carries the owner-editable fields of a one-to-one request
type RequestInput struct {
	Topic           string  `json:"topic"`
	Description     string  `json:"description"`
	Subject         string  `json:"subject"`
	PaymentAmount   float64 `json:"paymentAmount"`
	PreferredDate   string  `json:"preferredDate"`
	PreferredTime   string  `json:"preferredTime"`
	DurationMinutes int     `json:"durationMinutes"`
}

// NewRequest builds a draft request
func NewRequest(id, ownerID string, in RequestInput, now time.Time) (models.Request, error) {
	var bad []string
	if strings.TrimSpace(ownerID) == "" {
		bad = append(bad, "ownerId")
	}
	if in.PaymentAmount < 0 {
		bad = append(bad, "paymentAmount")
	}
	if in.DurationMinutes < 0 {
		bad = append(bad, "durationMinutes")
	}
	if len(bad) > 0 {
		return models.Request{}, &ValidationError{Fields: bad}
	}

	return models.Request{
		RequestID:       id,
		OwnerID:         ownerID,
		Topic:           strings.TrimSpace(in.Topic),
		Description:     in.Description,
		Subject:         strings.TrimSpace(in.Subject),
		PaymentAmount:   in.PaymentAmount,
		PreferredDate:   in.PreferredDate,
		PreferredTime:   in.PreferredTime,
		DurationMinutes: in.DurationMinutes,
		Status:          models.StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Publish moves a complete draft to open
func Publish(r models.Request, actor string, minAmount float64, now time.Time) (Decision, error) {
	if actor != r.OwnerID {
		return Decision{}, denied(actor, EventPublish)
	}
	if r.Status != models.StatusDraft {
		return Decision{}, invalid(r.Status, EventPublish, "")
	}

	var missing []string
	if r.Topic == "" {
		missing = append(missing, "topic")
	}
	if r.Subject == "" {
		missing = append(missing, "subject")
	}
	if r.PaymentAmount < minAmount {
		missing = append(missing, "paymentAmount")
	}
	if _, err := time.Parse("2006-01-02", r.PreferredDate); err != nil {
		missing = append(missing, "preferredDate")
	}
	if len(missing) > 0 {
		return Decision{}, &ValidationError{Fields: missing}
	}

	return decide(EventPublish, models.StatusDraft, models.StatusOpen, now), nil
}

// checkRespond applies the guards shared by every response decision
func checkRespond(r models.Request, responder, decision string) error {
	switch decision {
	case models.ResponseAccepted, models.ResponseDeclined, models.ResponseNotInterested:
	default:
		return &ValidationError{Fields: []string{"decision"}}
	}
	if strings.TrimSpace(responder) == "" {
		return &ValidationError{Fields: []string{"responderId"}}
	}
	if responder == r.OwnerID {
		return denied(responder, EventRespond)
	}
	if contains(r.Responses, models.ResponseKey(r.RequestID, responder)) {
		return ErrAlreadyResponded
	}
	switch r.Status {
	case models.StatusOpen:
	case models.StatusDraft:
		return invalid(r.Status, EventRespond, "request is not published")
	default:
		if decision == models.ResponseAccepted && r.AcceptedBy != "" {
			return ErrAlreadyClaimed
		}
		return ErrRequestNoLongerOpen
	}
	return nil
}

// Respond records a declined or not_interested response; status is unchanged
func Respond(r models.Request, responder, decision string, now time.Time) (Decision, error) {
	if decision == models.ResponseAccepted {
		return Decision{}, invalid(r.Status, EventRespond, "acceptance must go through a claim")
	}
	if err := checkRespond(r, responder, decision); err != nil {
		return Decision{}, err
	}

	key := models.ResponseKey(r.RequestID, responder)
	d := decide(EventRespond, models.StatusOpen, models.StatusOpen, now)
	d.Patch.Append = map[string][]string{"responses": {key}}
	d.add("responseCount", 1)
	d.expect(store.NotContains("responses", key))
	return d, nil
}

// Claim is the request half of an acceptance: open to active with acceptedBy set
func Claim(r models.Request, responder string, now time.Time) (Decision, error) {
	if err := checkRespond(r, responder, models.ResponseAccepted); err != nil {
		return Decision{}, err
	}

	key := models.ResponseKey(r.RequestID, responder)
	d := decide(EventRespond, models.StatusOpen, models.StatusActive, now)
	d.set("acceptedBy", responder)
	d.set("acceptedAt", now)
	d.Patch.Append = map[string][]string{"responses": {key}}
	d.add("responseCount", 1)
	d.expect(store.NotExists("acceptedBy"), store.NotContains("responses", key))
	d.Provision = true
	return d, nil
}

// Release undoes a claim whose meeting could not be provisioned
func Release(r models.Request, responder string, now time.Time) Decision {
	key := models.ResponseKey(r.RequestID, responder)
	d := decide(EventRespond, models.StatusActive, models.StatusOpen, now)
	d.Patch.Remove = []string{"acceptedBy", "acceptedAt"}
	if rest := without(r.Responses, key); len(rest) > 0 {
		d.set("responses", rest)
	} else {
		d.Patch.Remove = append(d.Patch.Remove, "responses")
	}
	d.add("responseCount", -1)
	d.expect(store.Eq("acceptedBy", responder), store.NotExists("meetingRef"))
	return d
}

// AttachMeeting stores the meeting reference on an active request
func AttachMeeting(r models.Request, meetingID string, now time.Time) (Decision, error) {
	if r.MeetingRef != "" {
		return Decision{Event: EventMeetingProvisioned, From: r.Status, To: r.Status, Noop: true}, nil
	}
	if r.Status != models.StatusActive {
		return Decision{}, invalid(r.Status, EventMeetingProvisioned, "")
	}
	d := decide(EventMeetingProvisioned, models.StatusActive, models.StatusActive, now)
	d.set("meetingRef", meetingID)
	d.expect(store.Eq("acceptedBy", r.AcceptedBy), store.NotExists("meetingRef"))
	return d, nil
}

// Complete ends an active session
func Complete(r models.Request, actor string, now time.Time) (Decision, error) {
	if actor == "" || (actor != r.OwnerID && actor != r.AcceptedBy) {
		return Decision{}, denied(actor, EventComplete)
	}
	if r.Status != models.StatusActive {
		return Decision{}, invalid(r.Status, EventComplete, "")
	}
	d := decide(EventComplete, models.StatusActive, models.StatusCompleted, now)
	d.set("completedAt", now)
	d.ReleaseMeeting = r.MeetingRef != ""
	return d, nil
}

// Archive hides a completed request from the owner's active views
func Archive(r models.Request, actor string, now time.Time) (Decision, error) {
	if actor != r.OwnerID {
		return Decision{}, denied(actor, EventArchive)
	}
	if r.Status != models.StatusCompleted {
		return Decision{}, invalid(r.Status, EventArchive, "")
	}
	return decide(EventArchive, models.StatusCompleted, models.StatusArchived, now), nil
}

// Cancel terminates a non-terminal request
func Cancel(r models.Request, actor, reason string, now time.Time) (Decision, error) {
	if actor != r.OwnerID {
		return Decision{}, denied(actor, EventCancel)
	}
	if IsTerminal(r.Status) {
		return Decision{}, invalid(r.Status, EventCancel, "")
	}
	d := decide(EventCancel, r.Status, models.StatusCancelled, now)
	if reason != "" {
		d.set("cancelReason", reason)
	}
	d.ReleaseMeeting = r.MeetingRef != ""
	return d, nil
}

// CanDelete returns the guard for deleting r: drafts, or requests nobody responded to yet
func CanDelete(r models.Request, actor string) (store.Conditions, error) {
	if actor != r.OwnerID {
		return nil, denied(actor, EventDelete)
	}
	if IsTerminal(r.Status) {
		return nil, invalid(r.Status, EventDelete, "")
	}
	if r.Status == models.StatusDraft {
		return store.Conditions{store.Eq("status", models.StatusDraft)}, nil
	}
	if r.ResponseCount > 0 {
		return nil, invalid(r.Status, EventDelete, "request has responses, cancel it instead")
	}
	return store.Conditions{store.Eq("status", r.Status), store.Eq("responseCount", 0)}, nil
}

// OneToOneRoster lists the owner and the accepted teacher
func OneToOneRoster(r models.Request) []models.MeetingParticipant {
	return []models.MeetingParticipant{
		{UserID: r.OwnerID, Role: models.RoleOwner},
		{UserID: r.AcceptedBy, Role: models.RoleTeacher},
	}
}
