package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExists   = errors.New("record already exists")
	ErrConditionFailed = errors.New("conditional check failed")
)

// TxCanceledError reports a transaction whose guards did not all hold.
// Failed[i] is true when operation i caused the cancellation.
type TxCanceledError struct {
	Failed []bool
}

func (e *TxCanceledError) Error() string {
	var idx []string
	for i, f := range e.Failed {
		if f {
			idx = append(idx, fmt.Sprint(i))
		}
	}
	return "transaction canceled, failed operations: [" + strings.Join(idx, ",") + "]"
}

// FailedAt reports whether operation i failed its guard
func (e *TxCanceledError) FailedAt(i int) bool {
	return i >= 0 && i < len(e.Failed) && e.Failed[i]
}

// Is lets errors.Is(err, ErrConditionFailed) match a canceled transaction
func (e *TxCanceledError) Is(target error) bool {
	return target == ErrConditionFailed
}
