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

// RequestService runs the one-to-one request lifecycle
type RequestService struct {
	Store            store.Store
	Gateway          *ResponseGateway
	Meetings         MeetingProvisioner
	Notifier         Notifier
	Clock            Clock
	MinPaymentAmount float64
}

type requestDecider func(r models.Request, now time.Time) (lifecycle.Decision, error)

// mutate reads the request, asks decide for a decision and writes it guarded by the decision's
// expectations, re-reading when another writer got there first
func (s *RequestService) mutate(ctx context.Context, id string, decide requestDecider) (models.Request, lifecycle.Decision, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var r models.Request
		if err := s.Store.Get(ctx, store.Requests, id, &r); err != nil {
			return models.Request{}, lifecycle.Decision{}, notFound(err)
		}

		d, err := decide(r, s.Clock.Now())
		if err != nil {
			return r, d, err
		}
		if d.Noop {
			return r, d, nil
		}

		var updated models.Request
		err = s.Store.ConditionalUpdate(ctx, store.Requests, id, d.Patch, d.Expect, &updated)
		if errors.Is(err, store.ErrConditionFailed) {
			log.Printf("🔄 %s on request %s conflicted, re-reading (attempt %d)", d.Event, id, attempt+1)
			continue
		}
		if err != nil {
			return r, d, notFound(err)
		}
		if d.Transitioned() {
			log.Printf("✅ Request %s: %s -> %s (%s)", id, d.From, d.To, d.Event)
		}
		return updated, d, nil
	}
	return models.Request{}, lifecycle.Decision{}, ErrConflict
}

func (s *RequestService) notify(ctx context.Context, users []string, event lifecycle.Event, id string) {
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, users, string(event), id)
	}
}

// Create stores a new draft
func (s *RequestService) Create(ctx context.Context, ownerID string, in lifecycle.RequestInput) (models.Request, error) {
	r, err := lifecycle.NewRequest(uuid.NewString(), ownerID, in, s.Clock.Now())
	if err != nil {
		return models.Request{}, err
	}
	if err := s.Store.Create(ctx, store.Requests, r); err != nil {
		return models.Request{}, fmt.Errorf("failed to create request: %w", err)
	}
	log.Printf("✅ Request %s created by %s", r.RequestID, ownerID)
	return r, nil
}

// Get loads one request
func (s *RequestService) Get(ctx context.Context, id string) (models.Request, error) {
	var r models.Request
	if err := s.Store.Get(ctx, store.Requests, id, &r); err != nil {
		return models.Request{}, notFound(err)
	}
	return r, nil
}

// ListOpen returns open requests the viewer can respond to, newest first
func (s *RequestService) ListOpen(ctx context.Context, viewerID string) ([]models.Request, error) {
	filter := store.Conditions{store.Eq("status", models.StatusOpen)}
	if viewerID != "" {
		filter = append(filter, store.Ne("ownerId", viewerID))
	}
	var open []models.Request
	if err := s.Store.Query(ctx, store.Requests, filter, &open); err != nil {
		return nil, fmt.Errorf("failed to list open requests: %w", err)
	}

	hidden := map[string]bool{}
	if viewerID != "" {
		var entries []models.HiddenRequest
		if err := s.Store.Query(ctx, store.HiddenRequests, store.Conditions{store.Eq("userId", viewerID)}, &entries); err != nil {
			return nil, fmt.Errorf("failed to load hidden requests: %w", err)
		}
		for _, h := range entries {
			hidden[h.RequestID] = true
		}
	}

	visible := make([]models.Request, 0, len(open))
	for _, r := range open {
		if !hidden[r.RequestID] {
			visible = append(visible, r)
		}
	}
	sortNewestFirst(visible)
	return visible, nil
}

// ListByOwner returns every request of an owner, newest first
func (s *RequestService) ListByOwner(ctx context.Context, ownerID string) ([]models.Request, error) {
	var out []models.Request
	if err := s.Store.Query(ctx, store.Requests, store.Conditions{store.Eq("ownerId", ownerID)}, &out); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(rs []models.Request) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].CreatedAt.After(rs[j].CreatedAt) })
}

// ListResponses returns the responses of a request in arrival order
func (s *RequestService) ListResponses(ctx context.Context, requestID string) ([]models.Response, error) {
	var out []models.Response
	if err := s.Store.Query(ctx, store.Responses, store.Conditions{store.Eq("requestId", requestID)}, &out); err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Publish opens a draft
func (s *RequestService) Publish(ctx context.Context, id, actor string) (models.Request, error) {
	r, _, err := s.mutate(ctx, id, func(r models.Request, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.Publish(r, actor, s.MinPaymentAmount, now)
	})
	return r, err
}

// Respond records a responder's decision. Acceptance claims the request and provisions the meeting.
func (s *RequestService) Respond(ctx context.Context, id, responder, decision, message string) (models.Request, error) {
	if decision == models.ResponseAccepted {
		return s.accept(ctx, id, responder, message)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var r models.Request
		if err := s.Store.Get(ctx, store.Requests, id, &r); err != nil {
			return models.Request{}, notFound(err)
		}
		now := s.Clock.Now()
		d, err := lifecycle.Respond(r, responder, decision, now)
		if err != nil {
			return models.Request{}, err
		}

		ops := []store.TxOp{
			store.PutIfAbsent(store.Responses, models.Response{
				ResponseID:  models.ResponseKey(id, responder),
				RequestID:   id,
				ResponderID: responder,
				Status:      decision,
				Message:     message,
				CreatedAt:   now,
				UpdatedAt:   now,
			}),
			store.UpdateIf(store.Requests, id, d.Patch, d.Expect),
		}
		if decision == models.ResponseNotInterested {
			ops = append(ops, store.PutIfAbsent(store.HiddenRequests, models.HiddenRequest{
				HiddenID:  models.HiddenKey(responder, id),
				UserID:    responder,
				RequestID: id,
				CreatedAt: now,
			}))
		}

		err = s.Store.Transact(ctx, ops)
		if err == nil {
			log.Printf("✅ %s responded %s to request %s", responder, decision, id)
			s.notify(ctx, []string{r.OwnerID}, lifecycle.EventRespond, id)
			return s.Get(ctx, id)
		}
		var canceled *store.TxCanceledError
		if !errors.As(err, &canceled) {
			return models.Request{}, fmt.Errorf("failed to record response: %w", err)
		}
		if canceled.FailedAt(0) || canceled.FailedAt(2) {
			return models.Request{}, lifecycle.ErrAlreadyResponded
		}
	}
	return models.Request{}, ErrConflict
}

// accept claims the request, provisions the meeting and releases the claim when that fails
func (s *RequestService) accept(ctx context.Context, id, responder, message string) (models.Request, error) {
	claimed, err := s.Gateway.TryClaim(ctx, id, responder, message)
	if err != nil {
		return models.Request{}, err
	}

	meeting, err := s.Meetings.Provision(ctx, id, models.RequestTypeOneToOne, lifecycle.OneToOneRoster(claimed))
	if err != nil {
		log.Printf("❌ Provisioning failed for %s, releasing claim: %v", id, err)
		if rerr := s.Gateway.Release(ctx, claimed, responder); rerr != nil {
			return models.Request{}, fmt.Errorf("%w (release failed: %v)", &lifecycle.ProvisioningError{RequestID: id, Err: err}, rerr)
		}
		return models.Request{}, &lifecycle.ProvisioningError{RequestID: id, Err: err}
	}

	r, err := s.attach(ctx, id, meeting.MeetingID)
	if err != nil {
		return models.Request{}, err
	}
	s.notify(ctx, []string{r.OwnerID, responder}, lifecycle.EventRespond, id)
	return r, nil
}

func (s *RequestService) attach(ctx context.Context, id, meetingID string) (models.Request, error) {
	r, _, err := s.mutate(ctx, id, func(r models.Request, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.AttachMeeting(r, meetingID, now)
	})
	if err != nil {
		return models.Request{}, fmt.Errorf("failed to attach meeting: %w", err)
	}
	return r, nil
}

// EnsureMeeting provisions and attaches the meeting of an active request missing one
func (s *RequestService) EnsureMeeting(ctx context.Context, r models.Request) error {
	if r.Status != models.StatusActive || r.MeetingRef != "" {
		return nil
	}
	meeting, err := s.Meetings.Provision(ctx, r.RequestID, models.RequestTypeOneToOne, lifecycle.OneToOneRoster(r))
	if err != nil {
		return &lifecycle.ProvisioningError{RequestID: r.RequestID, Err: err}
	}
	_, err = s.attach(ctx, r.RequestID, meeting.MeetingID)
	return err
}

// Complete ends an active session
func (s *RequestService) Complete(ctx context.Context, id, actor string) (models.Request, error) {
	r, d, err := s.mutate(ctx, id, func(r models.Request, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.Complete(r, actor, now)
	})
	if err != nil {
		return models.Request{}, err
	}
	s.afterTerminal(ctx, r, d)
	return r, nil
}

// Archive archives a completed request
func (s *RequestService) Archive(ctx context.Context, id, actor string) (models.Request, error) {
	r, _, err := s.mutate(ctx, id, func(r models.Request, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.Archive(r, actor, now)
	})
	return r, err
}

// Cancel cancels a non-terminal request
func (s *RequestService) Cancel(ctx context.Context, id, actor, reason string) (models.Request, error) {
	r, d, err := s.mutate(ctx, id, func(r models.Request, now time.Time) (lifecycle.Decision, error) {
		return lifecycle.Cancel(r, actor, reason, now)
	})
	if err != nil {
		return models.Request{}, err
	}
	s.afterTerminal(ctx, r, d)
	return r, nil
}

func (s *RequestService) afterTerminal(ctx context.Context, r models.Request, d lifecycle.Decision) {
	if d.ReleaseMeeting && r.MeetingRef != "" {
		if err := s.Meetings.MarkEnded(ctx, r.MeetingRef); err != nil {
			log.Printf("⚠️ Failed to end meeting %s: %v", r.MeetingRef, err)
		}
	}
	users := []string{r.OwnerID}
	if r.AcceptedBy != "" {
		users = append(users, r.AcceptedBy)
	}
	s.notify(ctx, users, d.Event, r.RequestID)
}

// Delete removes a draft or an unanswered request
func (s *RequestService) Delete(ctx context.Context, id, actor string) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		r, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		expect, err := lifecycle.CanDelete(r, actor)
		if err != nil {
			return err
		}
		err = s.Store.Delete(ctx, store.Requests, id, expect)
		if errors.Is(err, store.ErrConditionFailed) {
			continue
		}
		if err != nil {
			return notFound(err)
		}
		log.Printf("✅ Request %s deleted by %s", id, actor)
		return nil
	}
	return ErrConflict
}
