package rollup

import (
	"errors"
	"fmt"

	"github.com/hupe1980/rollup/blobstore"
	"github.com/hupe1980/rollup/incremental"
	"github.com/hupe1980/rollup/internal/arena"
	"github.com/hupe1980/rollup/internal/resource"
)

var (
	// ErrClosed is returned by operations on a closed Ingestor.
	ErrClosed = errors.New("rollup: ingestor is closed")

	// ErrNoStore is returned by Persist and Restore when no blob store is configured.
	ErrNoStore = errors.New("rollup: no blob store configured")

	// ErrNoSnapshot is returned by Restore when the store has no committed snapshot.
	ErrNoSnapshot = errors.New("rollup: no committed snapshot")

	// ErrIncompatible is returned when two indexes or an index and a snapshot
	// do not share an aggregation layout.
	ErrIncompatible = errors.New("rollup: incompatible layout")

	// ErrCorrupt is returned when a snapshot cannot be decoded.
	ErrCorrupt = errors.New("rollup: corrupt snapshot")

	// ErrMemoryLimit is returned when the memory budget refuses an operation.
	ErrMemoryLimit = errors.New("rollup: memory limit exceeded")
)

// PersistError reports a failed persist or restore step.
//
// The original underlying error can be accessed via errors.Unwrap.
type PersistError struct {
	// Op is the failed step, such as "write", "commit" or "read".
	Op string
	// Name is the snapshot blob involved, if known.
	Name  string
	cause error
}

func (e *PersistError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("rollup: %s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("rollup: %s %q: %v", e.Op, e.Name, e.cause)
}

func (e *PersistError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, incremental.ErrIncompatibleLayout) {
		return fmt.Errorf("%w: %w", ErrIncompatible, err)
	}
	if errors.Is(err, incremental.ErrCorruptSnapshot) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if errors.Is(err, resource.ErrMemoryLimitExceeded) || errors.Is(err, arena.ErrArenaFull) {
		return fmt.Errorf("%w: %w", ErrMemoryLimit, err)
	}
	var rej *incremental.RejectedError
	if errors.As(err, &rej) {
		return err
	}
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNoSnapshot, err)
	}

	return err
}
