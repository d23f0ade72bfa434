package store

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is matched by every error caused by a missing record.
var ErrNotFound = errors.New("not found")

// ErrInvalidBlockHeight is returned when a height is not on a chain.
var ErrInvalidBlockHeight = errors.New("invalid block height")

// ErrChallengedBlockOnChain is returned when the header head would move onto
// a challenged block.
var ErrChallengedBlockOnChain = errors.New("challenged block on chain")

// NotFoundError describes a missing record.
type NotFoundError struct {
	Column string
	Key    []byte
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s%x not found", e.Column, e.Key)
}

// Is makes NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is caused by a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
