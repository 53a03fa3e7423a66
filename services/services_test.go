package services

import (
	"testing"
	"time"

	"github.com/mewannirundakaperera/SkillNet-sub001/store"
	"github.com/mewannirundakaperera/SkillNet-sub001/testutil"
)

type testEnv struct {
	store    *store.MemoryStore
	clock    *testutil.FixedClock
	meetings MeetingProvisioner
	fake     *testutil.FakeProvisioner
	requests *RequestService
	groups   *GroupRequestService
	monitor  *DeadlineMonitor
}

// newEnv wires the services over a memory store. With a nil provisioner the real
// MeetingService is used; otherwise the fake.
func newEnv(t *testing.T, fake *testutil.FakeProvisioner) *testEnv {
	t.Helper()
	s := store.NewMemoryStore()
	clock := testutil.NewClock()

	var meetings MeetingProvisioner = &MeetingService{Store: s, BaseURL: "https://meet.test/", Clock: clock}
	if fake != nil {
		meetings = fake
	}

	requests := &RequestService{
		Store:            s,
		Gateway:          &ResponseGateway{Store: s, Clock: clock},
		Meetings:         meetings,
		Notifier:         LogNotifier{},
		Clock:            clock,
		MinPaymentAmount: 5,
	}
	groups := &GroupRequestService{
		Store:     s,
		Meetings:  meetings,
		Directory: OpenDirectory{},
		Notifier:  LogNotifier{},
		Clock:     clock,
	}
	return &testEnv{
		store:    s,
		clock:    clock,
		meetings: meetings,
		fake:     fake,
		requests: requests,
		groups:   groups,
		monitor: &DeadlineMonitor{
			Store:        s,
			Groups:       groups,
			Requests:     requests,
			Clock:        clock,
			Interval:     10 * time.Millisecond,
			ClaimTimeout: 2 * time.Minute,
		},
	}
}
