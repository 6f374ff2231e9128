package assistant

import "context"

// Client sends one user input to the hosted assistant and returns its reply text.
type Client interface {
	Complete(ctx context.Context, input string) (string, error)
}
