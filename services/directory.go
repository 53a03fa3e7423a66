package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// Directory answers group membership questions
type Directory interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// OpenDirectory treats every user as a member of every group
type OpenDirectory struct{}

func (OpenDirectory) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return userID != "", nil
}

// StoreDirectory reads membership rows from the GroupMembers collection
type StoreDirectory struct {
	Store store.Store
}

// IsMember checks for a membership row
func (d *StoreDirectory) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var m models.GroupMember
	err := d.Store.Get(ctx, store.GroupMembers, models.MembershipKey(groupID, userID), &m)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}
