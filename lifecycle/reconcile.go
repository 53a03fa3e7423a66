package lifecycle

import (
	"sort"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
)

// VotingProgress shows how close a group request is to opening
type VotingProgress struct {
	Votes     int  `json:"votes"`
	Threshold int  `json:"threshold"`
	Reached   bool `json:"reached"`
}

// Reconciliation holds every count derived from the raw sets of a group request
type Reconciliation struct {
	EffectiveParticipants []string       `json:"effectiveParticipants"`
	ExpectedPayers        []string       `json:"expectedPayers"`
	PaidCount             int            `json:"paidCount"`
	PendingPayers         []string       `json:"pendingPayers"`
	VotingProgress        VotingProgress `json:"votingProgress"`
	TeacherCount          int            `json:"teacherCount"`
}

// Reconcile derives participants, payers and voting progress from the stored sets.
// Output slices are sorted and free of duplicates.
func Reconcile(g models.GroupRequest) Reconciliation {
	effective := union(g.Participants, g.Votes, []string{g.CreatorID})
	paid := union(g.PaidParticipants)

	paidSet := make(map[string]struct{}, len(paid))
	for _, u := range paid {
		paidSet[u] = struct{}{}
	}
	pending := []string{}
	for _, u := range effective {
		if _, ok := paidSet[u]; !ok {
			pending = append(pending, u)
		}
	}

	votes := len(union(g.Votes))
	return Reconciliation{
		EffectiveParticipants: effective,
		ExpectedPayers:        append([]string{}, effective...),
		PaidCount:             len(paid),
		PendingPayers:         pending,
		VotingProgress: VotingProgress{
			Votes:     votes,
			Threshold: VotingThreshold,
			Reached:   votes >= VotingThreshold || g.Status != models.GroupStatusPending,
		},
		TeacherCount: len(union(g.Teachers)),
	}
}

// WithCounters returns g with its cached counters replaced by the reconciled values
func WithCounters(g models.GroupRequest) models.GroupRequest {
	rec := Reconcile(g)
	g.VoteCount = rec.VotingProgress.Votes
	g.TeacherCount = rec.TeacherCount
	g.ParticipantCount = len(rec.EffectiveParticipants)
	g.PaidCount = rec.PaidCount
	return g
}

// GroupRequestView is what read paths render: the record with fresh counters plus the derived sets
type GroupRequestView struct {
	models.GroupRequest
	EffectiveParticipants []string       `json:"effectiveParticipants"`
	ExpectedPayers        []string       `json:"expectedPayers"`
	PendingPayers         []string       `json:"pendingPayers"`
	VotingProgress        VotingProgress `json:"votingProgress"`
}

// View reconciles g for display
func View(g models.GroupRequest) GroupRequestView {
	rec := Reconcile(g)
	return GroupRequestView{
		GroupRequest:          WithCounters(g),
		EffectiveParticipants: rec.EffectiveParticipants,
		ExpectedPayers:        rec.ExpectedPayers,
		PendingPayers:         rec.PendingPayers,
		VotingProgress:        rec.VotingProgress,
	}
}

func union(sets ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, set := range sets {
		for _, v := range set {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// GroupRoster lists the effective participants and the selected teacher for provisioning
func GroupRoster(g models.GroupRequest) []models.MeetingParticipant {
	rec := Reconcile(g)
	roster := make([]models.MeetingParticipant, 0, len(rec.EffectiveParticipants)+1)
	for _, u := range rec.EffectiveParticipants {
		if u == g.SelectedTeacher {
			continue
		}
		role := models.RoleParticipant
		if u == g.CreatorID {
			role = models.RoleOwner
		}
		roster = append(roster, models.MeetingParticipant{UserID: u, Role: role})
	}
	if g.SelectedTeacher != "" {
		roster = append(roster, models.MeetingParticipant{UserID: g.SelectedTeacher, Role: models.RoleTeacher})
	}
	return roster
}
