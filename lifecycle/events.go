// Package lifecycle holds the transition tables of one-to-one and group requests.
//
// Every event takes a snapshot of the record and returns a Decision: the next status, the patch to
// write and the conditions the write must be guarded with. The package performs no I/O; services
// apply decisions with a conditional write and re-decide when the guard fails.
package lifecycle

import (
	"time"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// Event names an input to the state machines
type Event string

const (
	EventPublish            Event = "publish"
	EventRespond            Event = "respond"
	EventComplete           Event = "complete"
	EventArchive            Event = "archive"
	EventCancel             Event = "cancel"
	EventDelete             Event = "delete"
	EventVote               Event = "vote"
	EventUnvote             Event = "unvote"
	EventApplyToTeach       Event = "applyToTeach"
	EventWithdrawTeaching   Event = "withdrawTeaching"
	EventJoinAsParticipant  Event = "joinAsParticipant"
	EventLeaveParticipant   Event = "leaveParticipant"
	EventSelectTeacher      Event = "selectTeacher"
	EventPay                Event = "pay"
	EventDeadlineElapsed    Event = "deadlineElapsed"
	EventMeetingProvisioned Event = "meetingProvisioned"
	EventMarkStarted        Event = "markStarted"
)

// VotingThreshold is the number of votes that opens a pending group request
const VotingThreshold = 5

// Decision is the outcome of applying an event to a snapshot
type Decision struct {
	Event  Event
	From   string
	To     string
	Patch  store.Patch
	Expect store.Conditions

	// Provision asks the caller to provision the meeting after the write succeeds
	Provision bool
	// ReleaseMeeting asks the caller to mark the existing meeting ended
	ReleaseMeeting bool
	// Noop means the event was already applied and nothing must be written
	Noop bool
}

// Transitioned reports whether the decision changes status
func (d Decision) Transitioned() bool {
	return !d.Noop && d.From != d.To
}

// decide starts a decision guarded on the prior status
func decide(ev Event, from, to string, now time.Time) Decision {
	d := Decision{
		Event:  ev,
		From:   from,
		To:     to,
		Patch:  store.Patch{Set: map[string]interface{}{"updatedAt": now}},
		Expect: store.Conditions{store.Eq("status", from)},
	}
	if to != from {
		d.Patch.Set["status"] = to
	}
	return d
}

func (d *Decision) set(field string, v interface{}) {
	d.Patch.Set[field] = v
}

func (d *Decision) add(field string, delta float64) {
	if d.Patch.Add == nil {
		d.Patch.Add = map[string]float64{}
	}
	d.Patch.Add[field] += delta
}

func (d *Decision) addToSet(field, v string) {
	if d.Patch.AddToSet == nil {
		d.Patch.AddToSet = map[string][]string{}
	}
	d.Patch.AddToSet[field] = append(d.Patch.AddToSet[field], v)
}

func (d *Decision) deleteFromSet(field, v string) {
	if d.Patch.DeleteFromSet == nil {
		d.Patch.DeleteFromSet = map[string][]string{}
	}
	d.Patch.DeleteFromSet[field] = append(d.Patch.DeleteFromSet[field], v)
}

func (d *Decision) expect(c ...store.Condition) {
	d.Expect = append(d.Expect, c...)
}

// expectMember guards a membership fact the decision relied on
func (d *Decision) expectMember(field, v string, member bool) {
	if member {
		d.expect(store.Contains(field, v))
	} else {
		d.expect(store.NotContains(field, v))
	}
}

// expectSet guards the exact content of a string set
func (d *Decision) expectSet(field string, values []string) {
	if len(values) == 0 {
		d.expect(store.NotExists(field))
		return
	}
	d.expect(store.Eq(field, store.StringSet(values)))
}

// IsTerminal reports whether no further event applies to status
func IsTerminal(status string) bool {
	switch status {
	case models.StatusCompleted, models.StatusArchived, models.StatusCancelled:
		return true
	}
	return false
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func without(values []string, v string) []string {
	out := make([]string, 0, len(values))
	for _, s := range values {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
