package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/mewannirundakaperera/SkillNet-sub001/controllers"
	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
	"github.com/mewannirundakaperera/SkillNet-sub001/testutil"
)

type server struct {
	router *mux.Router
	store  *store.MemoryStore
	fake   *testutil.FakeProvisioner
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := store.NewMemoryStore()
	clock := testutil.NewClock()
	fake := testutil.NewFakeProvisioner()
	meetings := &services.MeetingService{Store: s, BaseURL: "https://meet.test", Clock: clock}

	r := mux.NewRouter()
	RegisterRoutes(r)
	RegisterRequestRoutes(r, &services.RequestService{
		Store:    s,
		Gateway:  &services.ResponseGateway{Store: s, Clock: clock},
		Meetings: fake,
		Notifier: services.LogNotifier{},
		Clock:    clock,
	})
	RegisterGroupRequestRoutes(r, &services.GroupRequestService{
		Store:     s,
		Meetings:  meetings,
		Directory: services.OpenDirectory{},
		Notifier:  services.LogNotifier{},
		Clock:     clock,
	})
	RegisterMeetingRoutes(r, meetings)
	RegisterMembershipRoutes(r, &services.MembershipService{Store: s, Clock: clock})
	return &server{router: r, store: s, fake: fake}
}

func (s *server) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body controllers.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	rec := srv.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestRoutes_AcceptFlow(t *testing.T) {
	srv := newServer(t)

	rec := srv.do(t, http.MethodPost, "/api/requests", map[string]interface{}{
		"actorId":       "O",
		"topic":         "Recursion",
		"subject":       "CS",
		"paymentAmount": 15,
		"preferredDate": "2026-03-20",
		"publish":       true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var created models.Request
	json.NewDecoder(rec.Body).Decode(&created)
	if created.Status != models.StatusOpen {
		t.Fatalf("status = %s, want open", created.Status)
	}
	base := "/api/requests/" + created.RequestID

	rec = srv.do(t, http.MethodGet, "/api/requests/open?viewerId=R", nil)
	var open []models.Request
	json.NewDecoder(rec.Body).Decode(&open)
	if len(open) != 1 {
		t.Fatalf("open listing = %d requests", len(open))
	}

	rec = srv.do(t, http.MethodPost, base+"/respond", map[string]string{"actorId": "R", "decision": "accepted"})
	if rec.Code != http.StatusOK {
		t.Fatalf("respond status = %d: %s", rec.Code, rec.Body)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"second responder", http.MethodPost, base + "/respond", map[string]string{"actorId": "S", "decision": "accepted"}, http.StatusConflict, "already_claimed"},
		{"same responder", http.MethodPost, base + "/respond", map[string]string{"actorId": "R", "decision": "declined"}, http.StatusConflict, "already_responded"},
		{"owner responds", http.MethodPost, base + "/respond", map[string]string{"actorId": "O", "decision": "accepted"}, http.StatusForbidden, "forbidden"},
		{"bad decision", http.MethodPost, base + "/respond", map[string]string{"actorId": "S", "decision": "maybe"}, http.StatusBadRequest, "validation_error"},
		{"archive active", http.MethodPost, base + "/archive", map[string]string{"actorId": "O"}, http.StatusConflict, "invalid_transition"},
		{"unknown request", http.MethodGet, "/api/requests/nope", nil, http.StatusNotFound, "not_found"},
		{"open without viewer", http.MethodGet, "/api/requests/open", nil, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if code := errorCode(t, rec); code != tt.wantErr {
				t.Errorf("code = %s, want %s", code, tt.wantErr)
			}
		})
	}

	rec = srv.do(t, http.MethodGet, base+"/responses", nil)
	var responses []models.Response
	json.NewDecoder(rec.Body).Decode(&responses)
	if len(responses) != 1 {
		t.Errorf("responses = %d, want 1", len(responses))
	}

	rec = srv.do(t, http.MethodPost, base+"/complete", map[string]string{"actorId": "R"})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d: %s", rec.Code, rec.Body)
	}
	if len(srv.fake.Ended) != 1 {
		t.Errorf("ended meetings = %v", srv.fake.Ended)
	}
}

func TestRequestRoutes_ProvisioningFailure(t *testing.T) {
	srv := newServer(t)
	testutil.SeedOpenRequest(t, srv.store, "r1", "O")
	srv.fake.SetFail(testutil.ErrProvisioner)

	rec := srv.do(t, http.MethodPost, "/api/requests/r1/respond", map[string]string{"actorId": "R", "decision": "accepted"})
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("status = %d, Retry-After = %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if code := errorCode(t, rec); code != "provisioning_failed" {
		t.Errorf("code = %s", code)
	}

	rec = srv.do(t, http.MethodGet, "/api/requests/r1", nil)
	var r models.Request
	json.NewDecoder(rec.Body).Decode(&r)
	if r.Status != models.StatusOpen {
		t.Errorf("status after failure = %s, want open", r.Status)
	}
}

func TestRequestRoutes_Delete(t *testing.T) {
	srv := newServer(t)
	testutil.SeedOpenRequest(t, srv.store, "r1", "O")

	if rec := srv.do(t, http.MethodDelete, "/api/requests/r1?actorId=R", nil); rec.Code != http.StatusForbidden {
		t.Errorf("delete by stranger status = %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodDelete, "/api/requests/r1?actorId=O", nil); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d: %s", rec.Code, rec.Body)
	}
	if rec := srv.do(t, http.MethodGet, "/api/requests/r1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestGroupRequestRoutes_FundingFlow(t *testing.T) {
	srv := newServer(t)

	rec := srv.do(t, http.MethodPost, "/api/group-requests", map[string]interface{}{
		"actorId": "C", "groupId": "grp", "title": "Statistics", "rate": 12.5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var view lifecycle.GroupRequestView
	json.NewDecoder(rec.Body).Decode(&view)
	base := "/api/group-requests/" + view.GroupRequestID

	post := func(path string, body interface{}) lifecycle.GroupRequestView {
		t.Helper()
		rec := srv.do(t, http.MethodPost, base+path, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %s status = %d: %s", path, rec.Code, rec.Body)
		}
		var v lifecycle.GroupRequestView
		if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
			t.Fatal(err)
		}
		return v
	}

	if rec := srv.do(t, http.MethodPost, base+"/teach", map[string]string{"actorId": "T"}); rec.Code != http.StatusConflict {
		t.Fatalf("teach while pending status = %d", rec.Code)
	}
	for _, u := range []string{"A", "B", "D", "E", "F"} {
		view = post("/vote", map[string]string{"actorId": u})
	}
	if view.Status != models.GroupStatusVotingOpen || view.VotingProgress.Votes != 5 {
		t.Fatalf("after votes = %s %+v", view.Status, view.VotingProgress)
	}
	view = post("/join", map[string]string{"actorId": "G"})
	view = post("/teach", map[string]string{"actorId": "T"})
	if view.Status != models.GroupStatusAccepted {
		t.Fatalf("after teach = %s", view.Status)
	}

	if rec := srv.do(t, http.MethodPost, base+"/select-teacher", map[string]interface{}{"actorId": "A", "teacherId": "T", "deadlineHours": 2}); rec.Code != http.StatusForbidden {
		t.Errorf("select by participant status = %d", rec.Code)
	}
	view = post("/select-teacher", map[string]interface{}{"actorId": "C", "teacherId": "T", "deadlineHours": 2})
	if view.Status != models.GroupStatusFunding || len(view.ExpectedPayers) != 7 {
		t.Fatalf("funding = %s expected %v", view.Status, view.ExpectedPayers)
	}

	for _, u := range view.ExpectedPayers {
		view = post("/pay", map[string]string{"actorId": u})
	}
	if view.Status != models.GroupStatusPaid || view.MeetingRef == "" {
		t.Fatalf("after payments = %s meeting %q", view.Status, view.MeetingRef)
	}

	rec = srv.do(t, http.MethodGet, "/api/meetings/"+view.GroupRequestID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("meeting status = %d", rec.Code)
	}
	var m models.Meeting
	json.NewDecoder(rec.Body).Decode(&m)
	if len(m.Participants) != 8 {
		t.Errorf("roster = %d entries, want 8", len(m.Participants))
	}

	rec = srv.do(t, http.MethodGet, "/api/group-requests?groupId=grp", nil)
	var list []lifecycle.GroupRequestView
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list) != 1 || list[0].PaidCount != 7 {
		t.Errorf("listing = %+v", list)
	}
}

func TestMembershipRoutes(t *testing.T) {
	srv := newServer(t)

	if rec := srv.do(t, http.MethodPost, "/api/groups/grp/members", map[string]string{"userId": "A"}); rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body)
	}
	rec := srv.do(t, http.MethodGet, "/api/groups/grp/members", nil)
	var members []models.GroupMember
	json.NewDecoder(rec.Body).Decode(&members)
	if len(members) != 1 || members[0].UserID != "A" {
		t.Fatalf("members = %+v", members)
	}
	if rec := srv.do(t, http.MethodDelete, "/api/groups/grp/members/A", nil); rec.Code != http.StatusOK {
		t.Errorf("remove status = %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodDelete, "/api/groups/grp/members/A", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second remove status = %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&lifecycle.ValidationError{Fields: []string{"x"}}, http.StatusBadRequest},
		{&lifecycle.PermissionError{Actor: "a"}, http.StatusForbidden},
		{services.ErrNotMember, http.StatusForbidden},
		{&lifecycle.InvalidTransitionError{From: "open"}, http.StatusConflict},
		{lifecycle.ErrAlreadyResponded, http.StatusConflict},
		{lifecycle.ErrAlreadyClaimed, http.StatusConflict},
		{lifecycle.ErrRequestNoLongerOpen, http.StatusConflict},
		{services.ErrConflict, http.StatusConflict},
		{lifecycle.ErrNotFound, http.StatusNotFound},
		{&lifecycle.ProvisioningError{RequestID: "r", Err: testutil.ErrProvisioner}, http.StatusServiceUnavailable},
		{testutil.ErrProvisioner, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := controllers.StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
