package incremental

import (
	"context"
	"errors"
	"fmt"
)

// ErrIncompatibleLayout is returned when two indexes do not share a slot layout.
var ErrIncompatibleLayout = errors.New("incompatible aggregation layout")

// Fold merges every row of other into ix, as if other's input rows had been
// added to ix. Both indexes must have the same aggregators in the same order
// and the same byte order.
//
// Lanes of other are folded in parallel, bounded by the background worker
// slots of the resource controller. Fold is not atomic: when ix rejects a row
// it returns a *RejectedError and rows folded before remain in ix.
func (ix *Index) Fold(ctx context.Context, other *Index) error {
	if other == nil {
		return nil
	}
	if other == ix {
		return errors.New("incremental: cannot fold an index into itself")
	}
	if !ix.layout.Compatible(other.layout) {
		return fmt.Errorf("%w: %v (%s) vs %v (%s)", ErrIncompatibleLayout,
			ix.layout.Specs(), orderName(ix), other.layout.Specs(), orderName(other))
	}

	jobs := make([]func(context.Context) error, len(other.lanes))
	for i := range other.lanes {
		jobs[i] = func(ctx context.Context) error {
			for n, r := range other.laneRows(i) {
				if n%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				reason, err := ix.insertRaw(r)
				if err != nil {
					return err
				}
				if reason != "" {
					return &RejectedError{Reason: reason}
				}
			}
			return nil
		}
	}
	return ix.opts.resource.RunBackground(ctx, jobs...)
}
