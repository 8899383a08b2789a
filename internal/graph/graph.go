package graph

import "context"

// Runner executes graph queries against an external graph database. The
// orchestration core only needs textual results it can hand back to the
// model.
type Runner interface {
	// Run executes one query and returns a textual rendering of the result.
	Run(ctx context.Context, query string) (string, error)

	Close() error
}
