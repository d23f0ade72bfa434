package chain

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/store"
)

// ErrChallengedBlockOnChain is returned when the header head would move onto
// a challenged block.
var ErrChallengedBlockOnChain = store.ErrChallengedBlockOnChain

// ErrAlreadyCommitted is returned when a chain update is used after Commit.
var ErrAlreadyCommitted = errors.New("chain update already committed")

// InternalDefectError is a broken internal invariant. Retrying the same input
// fails the same way, so the caller should stop instead.
type InternalDefectError struct {
	Msg string
}

func (e *InternalDefectError) Error() string {
	return "internal defect: " + e.Msg
}

func internalDefect(format string, args ...interface{}) error {
	return &InternalDefectError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedConfigurationError is returned for a combination of protocol
// features this node cannot process.
type UnsupportedConfigurationError struct {
	Feature         string
	ProtocolVersion primitives.ProtocolVersion
}

func (e *UnsupportedConfigurationError) Error() string {
	return fmt.Sprintf("unsupported configuration: %s at protocol version %d", e.Feature, e.ProtocolVersion)
}

// IsFatal reports whether err is an internal defect or an unsupported
// configuration.
func IsFatal(err error) bool {
	var defect *InternalDefectError
	if errors.As(err, &defect) {
		return true
	}
	var unsupported *UnsupportedConfigurationError
	return errors.As(err, &unsupported)
}
