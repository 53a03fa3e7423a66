package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

func applyRequest(t *testing.T, r models.Request, d Decision) models.Request {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	if err := s.Create(ctx, store.Requests, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	var out models.Request
	if err := s.ConditionalUpdate(ctx, store.Requests, r.RequestID, d.Patch, d.Expect, &out); err != nil {
		t.Fatalf("ConditionalUpdate() error = %v", err)
	}
	return out
}

func draft(t *testing.T) models.Request {
	t.Helper()
	r, err := NewRequest("r1", "O", RequestInput{Topic: "Recursion", Subject: "CS", PaymentAmount: 20, PreferredDate: "2026-03-10"}, now)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return r
}

func openRequest(t *testing.T) models.Request {
	t.Helper()
	r := draft(t)
	return applyRequest(t, r, mustDecide(t)(Publish(r, "O", 5, now)))
}

func TestPublish(t *testing.T) {
	r := draft(t)

	if _, err := Publish(r, "X", 5, now); !isPermission(err) {
		t.Errorf("Publish by non-owner error = %v, want PermissionError", err)
	}

	incomplete := r
	incomplete.Topic, incomplete.Subject, incomplete.PaymentAmount, incomplete.PreferredDate = "", "", 1, "next week"
	_, err := Publish(incomplete, "O", 5, now)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	want := []string{"topic", "subject", "paymentAmount", "preferredDate"}
	if len(verr.Fields) != len(want) {
		t.Fatalf("Fields = %v, want %v", verr.Fields, want)
	}
	for i := range want {
		if verr.Fields[i] != want[i] {
			t.Errorf("Fields[%d] = %s, want %s", i, verr.Fields[i], want[i])
		}
	}

	open := applyRequest(t, r, mustDecide(t)(Publish(r, "O", 5, now)))
	if open.Status != models.StatusOpen {
		t.Errorf("status = %s, want open", open.Status)
	}
	if _, err := Publish(open, "O", 5, now); !isInvalid(err) {
		t.Errorf("second publish error = %v, want InvalidTransitionError", err)
	}
}

func isPermission(err error) bool {
	var e *PermissionError
	return errors.As(err, &e)
}

func isInvalid(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

func TestRespond(t *testing.T) {
	r := openRequest(t)

	tests := []struct {
		name      string
		req       models.Request
		responder string
		decision  string
		check     func(error) bool
	}{
		{"owner", r, "O", models.ResponseDeclined, isPermission},
		{"bad decision", r, "R", "maybe", func(err error) bool { var e *ValidationError; return errors.As(err, &e) }},
		{"accepted goes through claim", r, "R", models.ResponseAccepted, isInvalid},
		{"draft", draft(t), "R", models.ResponseDeclined, isInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Respond(tt.req, tt.responder, tt.decision, now)
			if !tt.check(err) {
				t.Errorf("Respond() error = %v", err)
			}
		})
	}

	declined := applyRequest(t, r, mustDecide(t)(Respond(r, "R", models.ResponseNotInterested, now)))
	if declined.Status != models.StatusOpen || declined.ResponseCount != 1 {
		t.Errorf("status = %s responseCount = %d, want open and 1", declined.Status, declined.ResponseCount)
	}
	if _, err := Respond(declined, "R", models.ResponseDeclined, now); !errors.Is(err, ErrAlreadyResponded) {
		t.Errorf("repeat respond error = %v, want ErrAlreadyResponded", err)
	}
}

func TestClaimAndRelease(t *testing.T) {
	r := openRequest(t)
	r = applyRequest(t, r, mustDecide(t)(Respond(r, "R1", models.ResponseDeclined, now)))

	claim := mustDecide(t)(Claim(r, "R2", now))
	if !claim.Provision {
		t.Error("claim should ask for provisioning")
	}
	active := applyRequest(t, r, claim)
	if active.Status != models.StatusActive || active.AcceptedBy != "R2" || active.ResponseCount != 2 {
		t.Fatalf("claimed request = %+v", active)
	}

	if _, err := Claim(active, "R3", now); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("late claim error = %v, want ErrAlreadyClaimed", err)
	}
	if _, err := Respond(active, "R3", models.ResponseDeclined, now); !errors.Is(err, ErrRequestNoLongerOpen) {
		t.Errorf("late decline error = %v, want ErrRequestNoLongerOpen", err)
	}

	reopened := applyRequest(t, active, Release(active, "R2", now))
	if reopened.Status != models.StatusOpen || reopened.AcceptedBy != "" || reopened.AcceptedAt != nil {
		t.Errorf("released request = %+v", reopened)
	}
	if len(reopened.Responses) != 1 || reopened.ResponseCount != 1 {
		t.Errorf("responses = %v count = %d, want only R1", reopened.Responses, reopened.ResponseCount)
	}
}

func TestAttachCompleteArchive(t *testing.T) {
	r := openRequest(t)
	r = applyRequest(t, r, mustDecide(t)(Claim(r, "R", now)))
	r = applyRequest(t, r, mustDecide(t)(AttachMeeting(r, models.MeetingKey(r.RequestID), now)))
	if r.MeetingRef != "mtg_r1" {
		t.Fatalf("meetingRef = %q", r.MeetingRef)
	}

	if _, err := Complete(r, "X", now); !isPermission(err) {
		t.Errorf("outsider complete error = %v", err)
	}
	d := mustDecide(t)(Complete(r, "R", now))
	if !d.ReleaseMeeting {
		t.Error("complete should release the meeting")
	}
	r = applyRequest(t, r, d)

	if _, err := Archive(r, "R", now); !isPermission(err) {
		t.Errorf("teacher archive error = %v", err)
	}
	r = applyRequest(t, r, mustDecide(t)(Archive(r, "O", now)))
	if r.Status != models.StatusArchived {
		t.Errorf("status = %s, want archived", r.Status)
	}
	if _, err := Cancel(r, "O", "", now); !isInvalid(err) {
		t.Errorf("cancel of archived error = %v", err)
	}
}

func TestCanDelete(t *testing.T) {
	r := draft(t)
	if _, err := CanDelete(r, "X"); !isPermission(err) {
		t.Errorf("non-owner delete error = %v", err)
	}
	if _, err := CanDelete(r, "O"); err != nil {
		t.Errorf("draft delete error = %v", err)
	}

	open := openRequest(t)
	if _, err := CanDelete(open, "O"); err != nil {
		t.Errorf("unanswered open delete error = %v", err)
	}
	open.ResponseCount = 1
	if _, err := CanDelete(open, "O"); !isInvalid(err) {
		t.Errorf("answered delete error = %v, want InvalidTransitionError", err)
	}
}
