package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// MeetingProvisioner creates session rooms
type MeetingProvisioner interface {
	// Provision creates the meeting of a request, returning the existing one on repeat calls.
	Provision(ctx context.Context, requestID, requestType string, roster []models.MeetingParticipant) (models.Meeting, error)
	// MarkEnded completes a meeting; ending an ended meeting is a no-op.
	MarkEnded(ctx context.Context, meetingID string) error
}

// MeetingService keeps meetings in the store, one per request
type MeetingService struct {
	Store   store.Store
	BaseURL string
	Clock   Clock
	Archive RosterArchive // optional
}

// Provision creates the meeting keyed on the request id
func (s *MeetingService) Provision(ctx context.Context, requestID, requestType string, roster []models.MeetingParticipant) (models.Meeting, error) {
	roomID := uuid.NewString()
	m := models.Meeting{
		MeetingID:    models.MeetingKey(requestID),
		RequestID:    requestID,
		RequestType:  requestType,
		RoomID:       roomID,
		JoinURL:      strings.TrimRight(s.BaseURL, "/") + "/room/" + roomID,
		Participants: roster,
		Status:       models.MeetingStatusScheduled,
		CreatedAt:    s.Clock.Now(),
	}

	err := s.Store.Create(ctx, store.Meetings, m)
	if errors.Is(err, store.ErrAlreadyExists) {
		var existing models.Meeting
		if err := s.Store.Get(ctx, store.Meetings, m.MeetingID, &existing); err != nil {
			return models.Meeting{}, fmt.Errorf("failed to load meeting: %w", err)
		}
		log.Printf("🔄 Meeting %s already provisioned", existing.MeetingID)
		return existing, nil
	}
	if err != nil {
		return models.Meeting{}, fmt.Errorf("failed to create meeting: %w", err)
	}
	log.Printf("✅ Meeting %s provisioned for %s with %d participants", m.MeetingID, requestID, len(roster))

	s.archiveRoster(ctx, &m)
	return m, nil
}

// archiveRoster is best effort; a failed upload leaves the meeting usable
func (s *MeetingService) archiveRoster(ctx context.Context, m *models.Meeting) {
	if s.Archive == nil {
		return
	}
	key, err := s.Archive.Put(ctx, *m)
	if err != nil {
		log.Printf("⚠️ Roster archive failed for %s: %v", m.MeetingID, err)
		return
	}
	err = s.Store.ConditionalUpdate(ctx, store.Meetings, m.MeetingID,
		store.Patch{Set: map[string]interface{}{"rosterKey": key}}, nil, nil)
	if err != nil {
		log.Printf("⚠️ Failed to store roster key for %s: %v", m.MeetingID, err)
		return
	}
	m.RosterKey = key
}

// MarkEnded completes a meeting once
func (s *MeetingService) MarkEnded(ctx context.Context, meetingID string) error {
	err := s.Store.ConditionalUpdate(ctx, store.Meetings, meetingID,
		store.Patch{Set: map[string]interface{}{
			"status":  models.MeetingStatusCompleted,
			"endedAt": s.Clock.Now(),
		}},
		store.Conditions{store.Ne("status", models.MeetingStatusCompleted)}, nil)
	switch {
	case errors.Is(err, store.ErrConditionFailed):
		return nil
	case errors.Is(err, store.ErrNotFound):
		log.Printf("⚠️ Meeting %s not found when ending", meetingID)
		return nil
	case err != nil:
		return fmt.Errorf("failed to end meeting: %w", err)
	}
	log.Printf("✅ Meeting %s ended", meetingID)
	return nil
}

// Get loads the meeting of a request
func (s *MeetingService) Get(ctx context.Context, requestID string) (models.Meeting, error) {
	var m models.Meeting
	err := s.Store.Get(ctx, store.Meetings, models.MeetingKey(requestID), &m)
	if errors.Is(err, store.ErrNotFound) {
		return models.Meeting{}, lifecycle.ErrNotFound
	}
	return m, err
}

// RosterURL presigns the archived roster, empty when none was archived
func (s *MeetingService) RosterURL(ctx context.Context, m models.Meeting) (string, error) {
	if s.Archive == nil || m.RosterKey == "" {
		return "", nil
	}
	return s.Archive.ReadURL(ctx, m.RosterKey)
}
