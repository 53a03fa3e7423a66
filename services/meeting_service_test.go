package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
	"github.com/mewannirundakaperera/SkillNet-sub001/testutil"
)

type memArchive struct {
	objects map[string]models.Meeting
	fail    error
}

func (a *memArchive) Put(ctx context.Context, m models.Meeting) (string, error) {
	if a.fail != nil {
		return "", a.fail
	}
	key := RosterKey(m)
	a.objects[key] = m
	return key, nil
}

func (a *memArchive) ReadURL(ctx context.Context, key string) (string, error) {
	return "https://rosters.test/" + key, nil
}

func newMeetingService(archive RosterArchive) *MeetingService {
	return &MeetingService{Store: store.NewMemoryStore(), BaseURL: "https://meet.test/", Clock: testutil.NewClock(), Archive: archive}
}

func TestMeetingService_ProvisionIsIdempotent(t *testing.T) {
	archive := &memArchive{objects: map[string]models.Meeting{}}
	svc := newMeetingService(archive)
	ctx := context.Background()
	roster := []models.MeetingParticipant{{UserID: "O", Role: models.RoleOwner}, {UserID: "T", Role: models.RoleTeacher}}

	first, err := svc.Provision(ctx, "r1", models.RequestTypeOneToOne, roster)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if !strings.HasPrefix(first.JoinURL, "https://meet.test/room/") || first.MeetingID != "mtg_r1" {
		t.Errorf("meeting = %+v", first)
	}
	if first.RosterKey != "rosters/r1/mtg_r1.json" || len(archive.objects) != 1 {
		t.Errorf("rosterKey = %q, archived %d", first.RosterKey, len(archive.objects))
	}

	second, err := svc.Provision(ctx, "r1", models.RequestTypeOneToOne, nil)
	if err != nil {
		t.Fatalf("second Provision() error = %v", err)
	}
	if second.RoomID != first.RoomID || len(second.Participants) != 2 {
		t.Errorf("second Provision() = %+v, want the first meeting", second)
	}

	got, err := svc.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	url, err := svc.RosterURL(ctx, got)
	if err != nil || url != "https://rosters.test/rosters/r1/mtg_r1.json" {
		t.Errorf("RosterURL() = %q, %v", url, err)
	}
}

func TestMeetingService_ArchiveFailureKeepsMeeting(t *testing.T) {
	svc := newMeetingService(&memArchive{objects: map[string]models.Meeting{}, fail: errors.New("s3 down")})
	ctx := context.Background()

	m, err := svc.Provision(ctx, "r1", models.RequestTypeGroup, nil)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if m.RosterKey != "" {
		t.Errorf("rosterKey = %q, want empty", m.RosterKey)
	}
	if url, _ := svc.RosterURL(ctx, m); url != "" {
		t.Errorf("RosterURL() = %q, want empty", url)
	}
}

func TestMeetingService_MarkEnded(t *testing.T) {
	svc := newMeetingService(nil)
	ctx := context.Background()

	m, err := svc.Provision(ctx, "r1", models.RequestTypeOneToOne, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.MarkEnded(ctx, m.MeetingID); err != nil {
			t.Fatalf("MarkEnded() #%d error = %v", i+1, err)
		}
	}
	if err := svc.MarkEnded(ctx, "mtg_missing"); err != nil {
		t.Errorf("MarkEnded(missing) error = %v", err)
	}

	got, _ := svc.Get(ctx, "r1")
	if got.Status != models.MeetingStatusCompleted || got.EndedAt == nil {
		t.Errorf("meeting = %+v", got)
	}
	if _, err := svc.Get(ctx, "r2"); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
}
