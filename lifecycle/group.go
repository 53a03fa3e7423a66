package lifecycle

import (
	"strings"
	"time"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// GroupRequestInput carries the creator-supplied fields of a group request
type GroupRequestInput struct {
	GroupID         string  `json:"groupId"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Subject         string  `json:"subject"`
	Rate            float64 `json:"rate"`
	MinParticipants int     `json:"minParticipants"`
}

// NewGroupRequest builds a pending group request with reconciled counters
func NewGroupRequest(id, creatorID string, in GroupRequestInput, now time.Time) (models.GroupRequest, error) {
	var bad []string
	if strings.TrimSpace(creatorID) == "" {
		bad = append(bad, "creatorId")
	}
	if strings.TrimSpace(in.GroupID) == "" {
		bad = append(bad, "groupId")
	}
	if strings.TrimSpace(in.Title) == "" {
		bad = append(bad, "title")
	}
	if in.Rate < 0 {
		bad = append(bad, "rate")
	}
	if in.MinParticipants < 0 {
		bad = append(bad, "minParticipants")
	}
	if len(bad) > 0 {
		return models.GroupRequest{}, &ValidationError{Fields: bad}
	}

	minParticipants := in.MinParticipants
	if minParticipants == 0 {
		minParticipants = 1
	}

	return WithCounters(models.GroupRequest{
		GroupRequestID:  id,
		CreatorID:       creatorID,
		GroupID:         in.GroupID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		Subject:         in.Subject,
		Rate:            in.Rate,
		Status:          models.GroupStatusPending,
		MinParticipants: minParticipants,
		CreatedAt:       now,
		UpdatedAt:       now,
	}), nil
}

func statusIn(status string, allowed ...string) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

func isPaid(status string) bool {
	return status == models.GroupStatusPaid || status == models.GroupStatusPaymentComplete
}

// Vote records a vote; the fifth vote opens a pending request
func Vote(g models.GroupRequest, voter string, now time.Time) (Decision, error) {
	if voter == "" {
		return Decision{}, &ValidationError{Fields: []string{"actorId"}}
	}
	if voter == g.CreatorID {
		return Decision{}, denied(voter, EventVote)
	}
	if !statusIn(g.Status, models.GroupStatusPending, models.GroupStatusVotingOpen, models.GroupStatusAccepted) {
		return Decision{}, invalid(g.Status, EventVote, "")
	}
	if contains(g.Votes, voter) {
		return Decision{}, invalid(g.Status, EventVote, "already voted")
	}

	to := g.Status
	if g.Status == models.GroupStatusPending && len(union(g.Votes))+1 >= VotingThreshold {
		to = models.GroupStatusVotingOpen
	}

	d := decide(EventVote, g.Status, to, now)
	d.addToSet("votes", voter)
	d.add("voteCount", 1)
	inParticipants := contains(g.Participants, voter)
	if !inParticipants {
		d.add("participantCount", 1)
	}
	d.expectMember("participants", voter, inParticipants)
	if g.Status == models.GroupStatusPending {
		d.expectSet("votes", g.Votes)
	} else {
		d.expectMember("votes", voter, false)
	}
	return d, nil
}

// Unvote withdraws a vote. Status never moves backwards.
func Unvote(g models.GroupRequest, voter string, now time.Time) (Decision, error) {
	if !statusIn(g.Status, models.GroupStatusPending, models.GroupStatusVotingOpen, models.GroupStatusAccepted) {
		return Decision{}, invalid(g.Status, EventUnvote, "")
	}
	if !contains(g.Votes, voter) {
		return Decision{}, invalid(g.Status, EventUnvote, "has not voted")
	}

	d := decide(EventUnvote, g.Status, g.Status, now)
	d.deleteFromSet("votes", voter)
	d.add("voteCount", -1)
	inParticipants := contains(g.Participants, voter)
	if !inParticipants {
		d.add("participantCount", -1)
	}
	d.expectMember("votes", voter, true)
	d.expectMember("participants", voter, inParticipants)
	return d, nil
}

// ApplyToTeach adds a teacher candidate; the first candidate accepts the request
func ApplyToTeach(g models.GroupRequest, actor string, now time.Time) (Decision, error) {
	if actor == "" {
		return Decision{}, &ValidationError{Fields: []string{"actorId"}}
	}
	if actor == g.CreatorID {
		return Decision{}, denied(actor, EventApplyToTeach)
	}
	if !statusIn(g.Status, models.GroupStatusVotingOpen, models.GroupStatusAccepted) {
		return Decision{}, invalid(g.Status, EventApplyToTeach, "")
	}
	if contains(g.Teachers, actor) {
		return Decision{}, invalid(g.Status, EventApplyToTeach, "already applied")
	}

	to := g.Status
	if g.Status == models.GroupStatusVotingOpen && len(g.Teachers) == 0 {
		to = models.GroupStatusAccepted
	}

	d := decide(EventApplyToTeach, g.Status, to, now)
	d.addToSet("teachers", actor)
	d.add("teacherCount", 1)
	if g.Status == models.GroupStatusVotingOpen {
		d.expectSet("teachers", g.Teachers)
	} else {
		d.expectMember("teachers", actor, false)
	}
	return d, nil
}

// WithdrawTeaching removes a teacher candidate; losing the last one reopens voting
func WithdrawTeaching(g models.GroupRequest, actor string, now time.Time) (Decision, error) {
	if !statusIn(g.Status, models.GroupStatusVotingOpen, models.GroupStatusAccepted) {
		return Decision{}, invalid(g.Status, EventWithdrawTeaching, "")
	}
	if !contains(g.Teachers, actor) {
		return Decision{}, invalid(g.Status, EventWithdrawTeaching, "not a teacher candidate")
	}

	to := g.Status
	if g.Status == models.GroupStatusAccepted && len(union(g.Teachers)) == 1 {
		to = models.GroupStatusVotingOpen
	}

	d := decide(EventWithdrawTeaching, g.Status, to, now)
	d.deleteFromSet("teachers", actor)
	d.add("teacherCount", -1)
	if to != g.Status {
		d.expectSet("teachers", g.Teachers)
	} else {
		d.expectMember("teachers", actor, true)
	}
	return d, nil
}

// JoinAsParticipant adds an explicit participant
func JoinAsParticipant(g models.GroupRequest, actor string, now time.Time) (Decision, error) {
	if actor == "" {
		return Decision{}, &ValidationError{Fields: []string{"actorId"}}
	}
	if !statusIn(g.Status, models.GroupStatusVotingOpen, models.GroupStatusAccepted) {
		return Decision{}, invalid(g.Status, EventJoinAsParticipant, "")
	}
	if actor == g.CreatorID {
		return Decision{}, invalid(g.Status, EventJoinAsParticipant, "the creator always participates")
	}
	if contains(g.Participants, actor) {
		return Decision{}, invalid(g.Status, EventJoinAsParticipant, "already joined")
	}

	d := decide(EventJoinAsParticipant, g.Status, g.Status, now)
	d.addToSet("participants", actor)
	voted := contains(g.Votes, actor)
	if !voted {
		d.add("participantCount", 1)
	}
	d.expectMember("participants", actor, false)
	d.expectMember("votes", actor, voted)
	return d, nil
}

// LeaveParticipant removes an explicit participant; a voter stays effective
func LeaveParticipant(g models.GroupRequest, actor string, now time.Time) (Decision, error) {
	if !statusIn(g.Status, models.GroupStatusVotingOpen, models.GroupStatusAccepted) {
		return Decision{}, invalid(g.Status, EventLeaveParticipant, "")
	}
	if !contains(g.Participants, actor) {
		return Decision{}, invalid(g.Status, EventLeaveParticipant, "not a participant")
	}

	d := decide(EventLeaveParticipant, g.Status, g.Status, now)
	d.deleteFromSet("participants", actor)
	voted := contains(g.Votes, actor)
	if !voted {
		d.add("participantCount", -1)
	}
	d.expectMember("participants", actor, true)
	d.expectMember("votes", actor, voted)
	return d, nil
}

// SelectTeacher fixes the teacher, opens funding and freezes the participant snapshot
func SelectTeacher(g models.GroupRequest, actor, teacher string, deadlineHours float64, now time.Time) (Decision, error) {
	if actor != g.CreatorID {
		return Decision{}, denied(actor, EventSelectTeacher)
	}
	if g.Status != models.GroupStatusAccepted {
		return Decision{}, invalid(g.Status, EventSelectTeacher, "")
	}
	var bad []string
	if !contains(g.Teachers, teacher) {
		bad = append(bad, "teacherId")
	}
	if deadlineHours <= 0 {
		bad = append(bad, "deadlineHours")
	}
	if len(bad) > 0 {
		return Decision{}, &ValidationError{Fields: bad}
	}

	effective := Reconcile(g).EffectiveParticipants
	deadline := now.Add(time.Duration(deadlineHours * float64(time.Hour)))

	d := decide(EventSelectTeacher, models.GroupStatusAccepted, models.GroupStatusFunding, now)
	d.set("selectedTeacher", teacher)
	d.set("paymentDeadline", deadline.Unix())
	d.set("participants", store.StringSet(effective))
	d.expect(store.Contains("teachers", teacher))
	d.expectSet("participants", g.Participants)
	d.expectSet("votes", g.Votes)
	return d, nil
}

// Pay records one payment; the last expected payer moves the request to paid
func Pay(g models.GroupRequest, user string, now time.Time) (Decision, error) {
	if g.Status != models.GroupStatusFunding {
		return Decision{}, invalid(g.Status, EventPay, "")
	}
	expected := Reconcile(g).ExpectedPayers
	if !contains(expected, user) {
		return Decision{}, denied(user, EventPay)
	}
	if contains(g.PaidParticipants, user) {
		return Decision{}, invalid(g.Status, EventPay, "already paid")
	}

	paid := union(g.PaidParticipants, []string{user})
	to := models.GroupStatusFunding
	if len(union(paid, expected)) == len(paid) {
		to = models.GroupStatusPaid
	}

	d := decide(EventPay, models.GroupStatusFunding, to, now)
	d.addToSet("paidParticipants", user)
	d.add("totalPaid", g.Rate)
	d.add("paidCount", 1)
	d.expectSet("paidParticipants", g.PaidParticipants)
	d.Provision = to == models.GroupStatusPaid
	return d, nil
}

// DeadlineElapsed forces funding to paid once the payment deadline passed.
// Re-firing after the transition is a no-op.
func DeadlineElapsed(g models.GroupRequest, now time.Time) (Decision, error) {
	switch {
	case isPaid(g.Status), IsTerminal(g.Status), g.Status == models.GroupStatusInProgress:
		return Decision{Event: EventDeadlineElapsed, From: g.Status, To: g.Status, Noop: true}, nil
	case g.Status != models.GroupStatusFunding:
		return Decision{}, invalid(g.Status, EventDeadlineElapsed, "")
	case g.PaymentDeadline == 0 || now.Unix() < g.PaymentDeadline:
		return Decision{}, invalid(g.Status, EventDeadlineElapsed, "payment deadline not reached")
	}

	d := decide(EventDeadlineElapsed, models.GroupStatusFunding, models.GroupStatusPaid, now)
	d.expect(store.Eq("paymentDeadline", g.PaymentDeadline))
	d.Provision = true
	return d, nil
}

// AttachGroupMeeting stores the meeting reference on a paid or started request
func AttachGroupMeeting(g models.GroupRequest, meetingID string, now time.Time) (Decision, error) {
	if g.MeetingRef != "" {
		return Decision{Event: EventMeetingProvisioned, From: g.Status, To: g.Status, Noop: true}, nil
	}
	if !isPaid(g.Status) && g.Status != models.GroupStatusInProgress {
		return Decision{}, invalid(g.Status, EventMeetingProvisioned, "")
	}
	d := decide(EventMeetingProvisioned, g.Status, g.Status, now)
	d.set("meetingRef", meetingID)
	d.expect(store.NotExists("meetingRef"))
	return d, nil
}

// MarkStarted moves a paid request into session
func MarkStarted(g models.GroupRequest, actor string, now time.Time) (Decision, error) {
	if actor == "" || (actor != g.CreatorID && actor != g.SelectedTeacher) {
		return Decision{}, denied(actor, EventMarkStarted)
	}
	if !isPaid(g.Status) {
		return Decision{}, invalid(g.Status, EventMarkStarted, "")
	}
	d := decide(EventMarkStarted, g.Status, models.GroupStatusInProgress, now)
	d.set("startedAt", now)
	return d, nil
}

// CompleteGroup ends a running session
func CompleteGroup(g models.GroupRequest, actor string, now time.Time) (Decision, error) {
	if actor == "" || (actor != g.SelectedTeacher && !contains(Reconcile(g).EffectiveParticipants, actor)) {
		return Decision{}, denied(actor, EventComplete)
	}
	if g.Status != models.GroupStatusInProgress {
		return Decision{}, invalid(g.Status, EventComplete, "")
	}
	d := decide(EventComplete, models.GroupStatusInProgress, models.GroupStatusCompleted, now)
	d.set("completedAt", now)
	d.ReleaseMeeting = g.MeetingRef != ""
	return d, nil
}

// CancelGroup terminates the request; collected payments are flagged for refund
func CancelGroup(g models.GroupRequest, actor, reason string, now time.Time) (Decision, error) {
	if actor != g.CreatorID {
		return Decision{}, denied(actor, EventCancel)
	}
	if IsTerminal(g.Status) {
		return Decision{}, invalid(g.Status, EventCancel, "")
	}

	d := decide(EventCancel, g.Status, models.GroupStatusCancelled, now)
	d.set("cancelledBy", actor)
	if reason != "" {
		d.set("cancelReason", reason)
	}
	if len(g.PaidParticipants) > 0 {
		d.set("refundStatus", models.RefundStatusPending)
	} else {
		d.expect(store.NotExists("paidParticipants"))
	}
	d.ReleaseMeeting = g.MeetingRef != ""
	return d, nil
}
