package core

import "context"

// loop is a long-running task that returns only when ctx is cancelled.
type loop interface {
	Run(ctx context.Context) error
}
