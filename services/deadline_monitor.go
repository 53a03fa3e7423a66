package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// DeadlineMonitor is the only time-driven component: it forces overdue funding requests to paid
// and retries meeting provisioning that did not complete
type DeadlineMonitor struct {
	Store        store.Store
	Groups       *GroupRequestService
	Requests     *RequestService
	Clock        Clock
	Interval     time.Duration
	ClaimTimeout time.Duration
}

// SweepResult counts what one sweep did
type SweepResult struct {
	DeadlinesFired      int
	MeetingsRecovered   int
	ClaimsRolledForward int
}

// Run sweeps every Interval until ctx is cancelled
func (m *DeadlineMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	log.Printf("⏱️ Deadline monitor started (interval %s)", m.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("⏱️ Deadline monitor stopped")
			return
		case <-ticker.C:
			res, err := m.Tick(ctx)
			if err != nil {
				log.Printf("❌ Deadline sweep failed: %v", err)
				continue
			}
			if res != (SweepResult{}) {
				log.Printf("✅ Deadline sweep: %+v", res)
			}
		}
	}
}

// Tick runs one sweep
func (m *DeadlineMonitor) Tick(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := m.Clock.Now()

	var overdue []models.GroupRequest
	err := m.Store.Query(ctx, store.GroupRequests, store.Conditions{
		store.Eq("status", models.GroupStatusFunding),
		store.Exists("paymentDeadline"),
		store.Lte("paymentDeadline", now.Unix()),
	}, &overdue)
	if err != nil {
		return res, fmt.Errorf("failed to query overdue requests: %w", err)
	}
	for _, g := range overdue {
		_, fired, err := m.Groups.DeadlineElapsed(ctx, g.GroupRequestID)
		if err != nil {
			log.Printf("⚠️ Deadline for %s not applied: %v", g.GroupRequestID, err)
			continue
		}
		if fired {
			res.DeadlinesFired++
		}
	}

	for _, status := range []string{models.GroupStatusPaid, models.GroupStatusPaymentComplete, models.GroupStatusInProgress} {
		var missing []models.GroupRequest
		err := m.Store.Query(ctx, store.GroupRequests, store.Conditions{
			store.Eq("status", status),
			store.NotExists("meetingRef"),
		}, &missing)
		if err != nil {
			return res, fmt.Errorf("failed to query requests without meeting: %w", err)
		}
		for _, g := range missing {
			if err := m.Groups.EnsureMeeting(ctx, g); err != nil {
				log.Printf("⚠️ Meeting retry for %s failed: %v", g.GroupRequestID, err)
				continue
			}
			res.MeetingsRecovered++
		}
	}

	if m.Requests == nil {
		return res, nil
	}
	var stuck []models.Request
	err = m.Store.Query(ctx, store.Requests, store.Conditions{
		store.Eq("status", models.StatusActive),
		store.NotExists("meetingRef"),
	}, &stuck)
	if err != nil {
		return res, fmt.Errorf("failed to query active requests without meeting: %w", err)
	}
	for _, r := range stuck {
		if r.AcceptedAt == nil || now.Sub(*r.AcceptedAt) < m.ClaimTimeout {
			continue
		}
		if err := m.Requests.EnsureMeeting(ctx, r); err != nil {
			log.Printf("⚠️ Roll-forward of claim on %s failed: %v", r.RequestID, err)
			continue
		}
		res.ClaimsRolledForward++
	}
	return res, nil
}
