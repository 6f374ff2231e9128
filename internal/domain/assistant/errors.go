package assistant

import "errors"

var (
	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")

	// ErrRunTimeout is returned when a run is still not completed after the poll budget.
	ErrRunTimeout = errors.New("assistant run timed out")

	ErrInvalidThreadID = errors.New("invalid thread ID received from OpenAI")
	ErrInvalidRunID    = errors.New("invalid run ID received from OpenAI")
)

// NoResponse is the reply text used when the thread holds no assistant text.
const NoResponse = "No response generated"

// RunError reports a run that ended as failed, cancelled or expired.
type RunError struct {
	Status  string
	Message string
}

func (e *RunError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return "assistant run " + e.Status + ": " + msg
}

// UpstreamError is a failed call to the assistant provider. Op names the
// call for logs; clients only see Err.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }
