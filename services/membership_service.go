package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// MembershipService maintains the GroupMembers rows read by StoreDirectory
type MembershipService struct {
	Store store.Store
	Clock Clock
}

// ✅ AddMember - Adds a user to a group; adding an existing member returns the stored row
func (s *MembershipService) AddMember(ctx context.Context, groupID, userID, displayName string) (models.GroupMember, error) {
	var bad []string
	if strings.TrimSpace(groupID) == "" {
		bad = append(bad, "groupId")
	}
	if strings.TrimSpace(userID) == "" {
		bad = append(bad, "userId")
	}
	if len(bad) > 0 {
		return models.GroupMember{}, &lifecycle.ValidationError{Fields: bad}
	}

	m := models.GroupMember{
		MembershipID: models.MembershipKey(groupID, userID),
		GroupID:      groupID,
		UserID:       userID,
		DisplayName:  displayName,
		JoinedAt:     s.Clock.Now(),
	}
	err := s.Store.Create(ctx, store.GroupMembers, m)
	if errors.Is(err, store.ErrAlreadyExists) {
		var existing models.GroupMember
		if err := s.Store.Get(ctx, store.GroupMembers, m.MembershipID, &existing); err != nil {
			return models.GroupMember{}, fmt.Errorf("failed to load membership: %w", err)
		}
		return existing, nil
	}
	if err != nil {
		return models.GroupMember{}, fmt.Errorf("failed to add member: %w", err)
	}
	log.Printf("✅ %s joined group %s", userID, groupID)
	return m, nil
}

// ✅ RemoveMember - Removes a user from a group
func (s *MembershipService) RemoveMember(ctx context.Context, groupID, userID string) error {
	err := s.Store.Delete(ctx, store.GroupMembers, models.MembershipKey(groupID, userID), nil)
	if err != nil {
		return notFound(err)
	}
	log.Printf("✅ %s left group %s", userID, groupID)
	return nil
}

// ✅ ListMembers - Fetches the members of a group
func (s *MembershipService) ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	var members []models.GroupMember
	if err := s.Store.Query(ctx, store.GroupMembers, store.Conditions{store.Eq("groupId", groupID)}, &members); err != nil {
		return nil, fmt.Errorf("failed to list members of group '%s': %w", groupID, err)
	}
	return members, nil
}
