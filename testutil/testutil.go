// Package testutil provides fixtures shared by the service and controller tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// Epoch is the default time of a FixedClock
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// FixedClock returns a settable time
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at Epoch
func NewClock() *FixedClock {
	return &FixedClock{now: Epoch}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FakeProvisioner records provisioning calls and can be told to fail
type FakeProvisioner struct {
	mu       sync.Mutex
	Fail     error
	Meetings map[string]models.Meeting
	Ended    []string
	Calls    int
}

// NewFakeProvisioner creates a provisioner that succeeds
func NewFakeProvisioner() *FakeProvisioner {
	return &FakeProvisioner{Meetings: map[string]models.Meeting{}}
}

func (p *FakeProvisioner) Provision(ctx context.Context, requestID, requestType string, roster []models.MeetingParticipant) (models.Meeting, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	if p.Fail != nil {
		return models.Meeting{}, p.Fail
	}
	if m, ok := p.Meetings[requestID]; ok {
		return m, nil
	}
	m := models.Meeting{
		MeetingID:    models.MeetingKey(requestID),
		RequestID:    requestID,
		RequestType:  requestType,
		RoomID:       "room-" + requestID,
		JoinURL:      "https://meet.test/room/room-" + requestID,
		Participants: roster,
		Status:       models.MeetingStatusScheduled,
	}
	p.Meetings[requestID] = m
	return m, nil
}

func (p *FakeProvisioner) MarkEnded(ctx context.Context, meetingID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Ended = append(p.Ended, meetingID)
	return nil
}

// SetFail makes every following Provision call return err
func (p *FakeProvisioner) SetFail(err error) {
	p.mu.Lock()
	p.Fail = err
	p.mu.Unlock()
}

// ErrProvisioner is a canned provisioning failure
var ErrProvisioner = errors.New("meeting backend unavailable")

// SeedOpenRequest stores an open one-to-one request owned by ownerID
func SeedOpenRequest(t *testing.T, s store.Store, id, ownerID string) models.Request {
	t.Helper()
	r, err := lifecycle.NewRequest(id, ownerID, lifecycle.RequestInput{
		Topic:         "Dynamic programming",
		Subject:       "Algorithms",
		PaymentAmount: 25,
		PreferredDate: "2026-03-15",
	}, Epoch)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	r.Status = models.StatusOpen
	if err := s.Create(context.Background(), store.Requests, r); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return r
}

// SeedGroupRequest stores g with reconciled counters
func SeedGroupRequest(t *testing.T, s store.Store, g models.GroupRequest) models.GroupRequest {
	t.Helper()
	g = lifecycle.WithCounters(g)
	if g.CreatedAt.IsZero() {
		g.CreatedAt, g.UpdatedAt = Epoch, Epoch
	}
	if err := s.Create(context.Background(), store.GroupRequests, g); err != nil {
		t.Fatalf("seed group request: %v", err)
	}
	return g
}

// SeedMembers stores membership rows for userIDs in groupID
func SeedMembers(t *testing.T, s store.Store, groupID string, userIDs ...string) {
	t.Helper()
	for _, u := range userIDs {
		m := models.GroupMember{MembershipID: models.MembershipKey(groupID, u), GroupID: groupID, UserID: u, JoinedAt: Epoch}
		if err := s.Create(context.Background(), store.GroupMembers, m); err != nil {
			t.Fatalf("seed member %s: %v", u, err)
		}
	}
}
