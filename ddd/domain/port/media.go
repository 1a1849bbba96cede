package port

import "context"

// MediaResolver understands the supported kinds of media references
// (local paths, object storage keys, remote video URLs).
type MediaResolver interface {
	// Validate checks that ref can be resolved without downloading it.
	Validate(ctx context.Context, ref string) error
	// Fetch materializes ref inside dir and returns a local file path.
	Fetch(ctx context.Context, ref, dir string) (string, error)
}
