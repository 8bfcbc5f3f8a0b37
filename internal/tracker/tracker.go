// Package tracker wraps loops so that each one shows up as a task in the
// progress display.
package tracker

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"mpbar/internal/machine"
	"mpbar/internal/progress"
)

// Range runs fn for i in [0, total) and reports progress under name.
// It stops at the first error returned by fn. On every exit path the loop
// ends with a Last report carrying the iterations completed. A failure to
// start or restart the pickup does not stop the loop; it is joined into the
// returned error.
func Range(ctx context.Context, m *machine.Machine, name string, total int, fn func(ctx context.Context, i int) error) (err error) {
	lease, ferr := m.FetchReporter(ctx)
	defer func() {
		err = errors.Join(err, lease.Release())
	}()
	err = ferr

	rep := lease.Reporter()
	id := uuid.NewString()
	done := 0
	defer func() {
		// Always forwarded, whatever the throttle held back.
		_ = rep.Report(ctx, progress.Report{TaskID: id, Name: name, Done: done, Total: total, Last: true})
	}()

	_ = rep.Report(ctx, progress.Report{TaskID: id, Name: name, Total: total, First: true})
	for i := 0; i < total; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return errors.Join(err, cerr)
		}
		if ferr := fn(ctx, i); ferr != nil {
			return errors.Join(err, ferr)
		}
		done = i + 1
		if done < total {
			_ = rep.Report(ctx, progress.Report{TaskID: id, Name: name, Done: done, Total: total})
		}
	}
	return err
}

// Each runs fn for every item, reporting progress like Range.
func Each[T any](ctx context.Context, m *machine.Machine, name string, items []T, fn func(ctx context.Context, item T) error) error {
	return Range(ctx, m, name, len(items), func(ctx context.Context, i int) error {
		return fn(ctx, items[i])
	})
}
