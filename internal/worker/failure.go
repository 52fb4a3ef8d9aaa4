package worker

import "fmt"

// The pipeline distinguishes three failure classes (everything else is
// treated as transient and retried with backoff):
//
//   - terminal-business: retrying cannot change the outcome; the job is
//     either acked as a "nothing to do" no-op or buried for an operator.
//   - malformed: the payload violates the job contract; buried immediately.

// TerminalError marks a non-retryable business outcome.
type TerminalError struct {
	Err  error
	Bury bool
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal: %v", e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps a business outcome that is complete as-is: the job is
// acked without retrying (e.g. "no device token", "already completed").
func Terminal(err error) error {
	return &TerminalError{Err: err}
}

// TerminalBury wraps a non-retryable failure an operator should see, e.g.
// a webhook for a payment that does not exist.
func TerminalBury(err error) error {
	return &TerminalError{Err: err, Bury: true}
}

// MalformedError marks a payload that violates the job contract.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func Malformed(err error) error {
	return &MalformedError{Err: err}
}
