// Package engineerr classifies the failure modes of the storage engine.
//
// Most operations in slotted and bufferpool report "not an error" outcomes
// (no page space, an invalid slot, a double unpin) through plain bool /
// (T, bool) returns: a retry after some other caller unpins, or after a
// compaction, may succeed. The buffer pool's no-free-frame outcome is the
// one exception exported here as a sentinel, since callers routinely need
// to distinguish it from the I/O errors returned alongside it. Disk I/O
// failures are true errors, and those are wrapped here so a caller gets a
// stack trace without the lower layers needing to log anything themselves.
package engineerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors a caller can compare against with errors.Is.
var (
	// ErrIO marks a failure from the backing file (short read/write, seek
	// failure, flush failure). Always wrapped with page-level context.
	ErrIO = errors.New("gorelly: disk i/o error")

	// ErrNoFreeFrame is returned by the buffer pool when every frame is
	// pinned and the free list is empty. Not fatal: a retry after some
	// caller unpins a frame may succeed.
	ErrNoFreeFrame = errors.New("gorelly: no free frame available")
)

// WrapIO wraps err as an ErrIO with page-level context, or returns nil if
// err is nil. Every return still satisfies errors.Is(result, ErrIO).
func WrapIO(err error, op string, pageID fmt.Stringer) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(joinErr{ErrIO, err}, "%s page %s", op, pageID)
}

// joinErr lets errors.Is match both ErrIO and the underlying cause without
// pulling in Go 1.20's errors.Join, keeping parity with the pkg/errors style
// used throughout this module.
type joinErr struct {
	sentinel error
	cause    error
}

func (j joinErr) Error() string { return j.cause.Error() }
func (j joinErr) Unwrap() error { return j.cause }
func (j joinErr) Is(target error) bool {
	return target == j.sentinel || errors.Is(j.cause, target)
}
