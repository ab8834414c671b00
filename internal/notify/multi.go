package notify

import (
	"context"
	"errors"

	"contest-portal/internal/contest"
)

// Multi fans a submission out to every notifier and joins their errors.
type Multi []contest.Notifier

// Notify implements contest.Notifier.
func (m Multi) Notify(ctx context.Context, s contest.Submission) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
