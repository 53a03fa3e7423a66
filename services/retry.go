package services

import (
	"errors"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// maxAttempts bounds the read, decide, write loop of one mutation
const maxAttempts = 8

// ErrConflict is returned when a record kept changing under a mutation
var ErrConflict = errors.New("record changed concurrently, please retry")

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return lifecycle.ErrNotFound
	}
	return err
}
