package store

import (
	"strings"
	"testing"
)

func TestExprUpdate(t *testing.T) {
	e := newExpr()
	got, err := e.update(Patch{
		Set:      map[string]interface{}{"status": "active", "votes": StringSet{}},
		Remove:   []string{"acceptedBy"},
		AddToSet: map[string][]string{"teachers": {"t1"}},
		Append:   map[string][]string{"responses": {"r1#u1"}},
		Add:      map[string]float64{"responseCount": 1},
	})
	if err != nil {
		t.Fatalf("update() error = %v", err)
	}

	for _, want := range []string{
		"SET #status = :v",
		"#responses = list_append(if_not_exists(#responses, :v",
		"REMOVE #votes, #acceptedBy",
		"ADD #responseCount :v",
		"#teachers :v",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("update() = %q, missing %q", got, want)
		}
	}
	if e.names["#acceptedBy"] != "acceptedBy" {
		t.Errorf("names = %v", e.names)
	}
}

func TestExprCondition(t *testing.T) {
	e := newExpr()
	got, err := e.condition(Conditions{Eq("status", "open"), NotExists("acceptedBy"), NotContains("votes", "u1")})
	if err != nil {
		t.Fatalf("condition() error = %v", err)
	}
	want := "#status = :v1 AND attribute_not_exists(#acceptedBy) AND (attribute_not_exists(#votes) OR NOT contains(#votes, :v2))"
	if got != want {
		t.Errorf("condition() = %q, want %q", got, want)
	}
}

func TestExprEmptyValues(t *testing.T) {
	e := newExpr()
	if _, err := e.update(Patch{Remove: []string{"meetingRef"}}); err != nil {
		t.Fatalf("update() error = %v", err)
	}
	if e.attrValues() != nil {
		t.Error("attrValues() should be nil for a REMOVE-only update")
	}
	if _, err := newExpr().update(Patch{}); err == nil {
		t.Error("empty patch should be rejected")
	}
}
