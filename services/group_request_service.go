package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// GroupRequestService runs the group request lifecycle and its funding
type GroupRequestService struct {
	Store     store.Store
	Meetings  MeetingProvisioner
	Directory Directory
	Notifier  Notifier
	Clock     Clock
}

type groupDecider func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error)

// ErrNotMember is returned when the actor does not belong to the request's group
var ErrNotMember = errors.New("user is not a member of this group")

func (s *GroupRequestService) mutate(ctx context.Context, id string, decide groupDecider) (models.GroupRequest, lifecycle.Decision, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var g models.GroupRequest
		if err := s.Store.Get(ctx, store.GroupRequests, id, &g); err != nil {
			return models.GroupRequest{}, lifecycle.Decision{}, notFound(err)
		}

		d, err := decide(g, s.Clock.Now())
		if err != nil {
			return g, d, err
		}
		if d.Noop {
			return g, d, nil
		}

		var updated models.GroupRequest
		err = s.Store.ConditionalUpdate(ctx, store.GroupRequests, id, d.Patch, d.Expect, &updated)
		if errors.Is(err, store.ErrConditionFailed) {
			log.Printf("🔄 %s on group request %s conflicted, re-reading (attempt %d)", d.Event, id, attempt+1)
			continue
		}
		if err != nil {
			return g, d, notFound(err)
		}
		if d.Transitioned() {
			log.Printf("✅ Group request %s: %s -> %s (%s)", id, d.From, d.To, d.Event)
		}
		return updated, d, nil
	}
	return models.GroupRequest{}, lifecycle.Decision{}, ErrConflict
}

// apply runs a mutation and its side effects and returns the reconciled view
func (s *GroupRequestService) apply(ctx context.Context, id string, decide groupDecider) (lifecycle.GroupRequestView, error) {
	v, _, err := s.applyDecision(ctx, id, decide)
	return v, err
}

func (s *GroupRequestService) applyDecision(ctx context.Context, id string, decide groupDecider) (lifecycle.GroupRequestView, lifecycle.Decision, error) {
	g, d, err := s.mutate(ctx, id, decide)
	if err != nil {
		return lifecycle.GroupRequestView{}, d, err
	}

	if d.Provision {
		if err := s.EnsureMeeting(ctx, g); err != nil {
			log.Printf("⚠️ Meeting for %s not provisioned yet, monitor will retry: %v", id, err)
		} else if fresh, err := s.load(ctx, id); err == nil {
			g = fresh
		}
	}
	if d.ReleaseMeeting && g.MeetingRef != "" {
		if err := s.Meetings.MarkEnded(ctx, g.MeetingRef); err != nil {
			log.Printf("⚠️ Failed to end meeting %s: %v", g.MeetingRef, err)
		}
	}
	if d.Transitioned() && s.Notifier != nil {
		s.Notifier.Notify(ctx, lifecycle.Reconcile(g).EffectiveParticipants, string(d.Event), id)
	}
	return lifecycle.View(g), d, nil
}

func (s *GroupRequestService) load(ctx context.Context, id string) (models.GroupRequest, error) {
	var g models.GroupRequest
	if err := s.Store.Get(ctx, store.GroupRequests, id, &g); err != nil {
		return models.GroupRequest{}, notFound(err)
	}
	return g, nil
}

func (s *GroupRequestService) requireMember(ctx context.Context, groupID, userID string) error {
	if s.Directory == nil {
		return nil
	}
	ok, err := s.Directory.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// memberMutation checks the actor's membership before applying the event
func (s *GroupRequestService) memberMutation(ctx context.Context, id, actor string, decide groupDecider) (lifecycle.GroupRequestView, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return lifecycle.GroupRequestView{}, err
	}
	if err := s.requireMember(ctx, g.GroupID, actor); err != nil {
		return lifecycle.GroupRequestView{}, err
	}
	return s.apply(ctx, id, decide)
}

// Create stores a new pending group request
func (s *GroupRequestService) Create(ctx context.Context, creatorID string, in lifecycle.GroupRequestInput) (lifecycle.GroupRequestView, error) {
	g, err := lifecycle.NewGroupRequest(uuid.NewString(), creatorID, in, s.Clock.Now())
	if err != nil {
		return lifecycle.GroupRequestView{}, err
	}
	if err := s.requireMember(ctx, g.GroupID, creatorID); err != nil {
		return lifecycle.GroupRequestView{}, err
	}
	if err := s.Store.Create(ctx, store.GroupRequests, g); err != nil {
		return lifecycle.GroupRequestView{}, fmt.Errorf("failed to create group request: %w", err)
	}
	log.Printf("✅ Group request %s created in group %s", g.GroupRequestID, g.GroupID)
	return lifecycle.View(g), nil
}

// Get loads one group request
func (s *GroupRequestService) Get(ctx context.Context, id string) (lifecycle.GroupRequestView, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return lifecycle.GroupRequestView{}, err
	}
	return lifecycle.View(g), nil
}

// ListByGroup returns the group's requests, newest first
func (s *GroupRequestService) ListByGroup(ctx context.Context, groupID string) ([]lifecycle.GroupRequestView, error) {
	var filter store.Conditions
	if groupID != "" {
		filter = store.Conditions{store.Eq("groupId", groupID)}
	}
	var gs []models.GroupRequest
	if err := s.Store.Query(ctx, store.GroupRequests, filter, &gs); err != nil {
		return nil, fmt.Errorf("failed to list group requests: %w", err)
	}
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].CreatedAt.After(gs[j].CreatedAt) })

	views := make([]lifecycle.GroupRequestView, 0, len(gs))
	for _, g := range gs {
		views = append(views, lifecycle.View(g))
	}
	return views, nil
}

// Vote records the actor's vote
func (s *GroupRequestService) Vote(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error) {
	return s.memberMutation(ctx, id, actor, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.Vote(g, actor, now)
	})
}

// Unvote withdraws the actor's vote
func (s *GroupRequestService) Unvote(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error) {
	return s.apply(ctx, id, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.Unvote(g, actor, now)
	})
}

// ApplyToTeach adds the actor as a teacher candidate
func (s *GroupRequestService) ApplyToTeach(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error) {
	return s.memberMutation(ctx, id, actor, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.ApplyToTeach(g, actor, now)
	})
}

// WithdrawTeaching removes the actor from the teacher candidates
func (s *GroupRequestService) WithdrawTeaching(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error) {
	return s.apply(ctx, id, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.WithdrawTeaching(g, actor, now)
	})
}

// Join adds the actor as an explicit participant
func (s *GroupRequestService) Join(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error) {
	return s.memberMutation(ctx, id, actor, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.JoinAsParticipant(g, actor, now)
	})
}

// Leave removes the actor from the explicit participants
func (s *GroupRequestService) Leave(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error) {
	return s.apply(ctx, id, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.LeaveParticipant(g, actor, now)
	})
}

// SelectTeacher opens funding with the chosen teacher
func (s *GroupRequestService) SelectTeacher(ctx context.Context, id, actor, teacherID string, deadlineHours float64) (lifecycle.GroupRequestView, error) {
	return s.apply(ctx, id, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.SelectTeacher(g, actor, teacherID, deadlineHours, now)
	})
}

// Pay records the actor's payment
func (s *GroupRequestService) Pay(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error) {
	return s.apply(ctx, id, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.Pay(g, actor, now)
	})
}

// DeadlineElapsed forces an overdue funding request to paid.
// The bool is false when another caller already moved the request on.
func (s *GroupRequestService) DeadlineElapsed(ctx context.Context, id string) (lifecycle.GroupRequestView, bool, error) {
	v, d, err := s.applyDecision(ctx, id, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.DeadlineElapsed(g, now)
	})
	if err != nil {
		return v, false, err
	}
	return v, d.Transitioned(), nil
}

// MarkStarted starts the session
func (s *GroupRequestService) MarkStarted(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error) {
	return s.apply(ctx, id, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.MarkStarted(g, actor, now)
	})
}

// Complete ends the session
func (s *GroupRequestService) Complete(ctx context.Context, id, actor string) (lifecycle.GroupRequestView, error) {
	return s.apply(ctx, id, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.CompleteGroup(g, actor, now)
	})
}

// Cancel cancels the request
func (s *GroupRequestService) Cancel(ctx context.Context, id, actor, reason string) (lifecycle.GroupRequestView, error) {
	return s.apply(ctx, id, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.CancelGroup(g, actor, reason, now)
	})
}

// EnsureMeeting provisions the meeting of a paid request and attaches it once
func (s *GroupRequestService) EnsureMeeting(ctx context.Context, g models.GroupRequest) error {
	if g.MeetingRef != "" {
		return nil
	}
	meeting, err := s.Meetings.Provision(ctx, g.GroupRequestID, models.RequestTypeGroup, lifecycle.GroupRoster(g))
	if err != nil {
		if n, incErr := s.Store.AtomicIncrement(ctx, store.GroupRequests, g.GroupRequestID, "provisionAttempts", 1); incErr == nil {
			log.Printf("⚠️ Provisioning attempt %d for %s failed", int(n), g.GroupRequestID)
		}
		return &lifecycle.ProvisioningError{RequestID: g.GroupRequestID, Err: err}
	}
	_, _, err = s.mutate(ctx, g.GroupRequestID, func(g models.GroupRequest, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.AttachGroupMeeting(g, meeting.MeetingID, now)
	})
	if err != nil {
		return fmt.Errorf("failed to attach meeting: %w", err)
	}
	return nil
}
