package opt

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownParameter is returned when a parameter name is not declared in the BoundSpec.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrCorruptLedger is returned when a ledger line cannot be decoded at load time.
	ErrCorruptLedger = errors.New("corrupt ledger")

	// ErrMalformedMessage is returned for an incoming line that matches none of the
	// recognized message shapes or fails JSON decoding.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrCandidateNotPending is returned when a remove or resolve instruction names a
	// candidate that is not in the PendingSet.
	ErrCandidateNotPending = errors.New("candidate not pending")

	// ErrReceiveTimeout is returned when a receive timeout is configured and the
	// remote side stays silent past it.
	ErrReceiveTimeout = errors.New("receive timed out")

	// ErrAlreadyRunning is returned when Run is called on a coordinator that has
	// already been bound to its channel.
	ErrAlreadyRunning = errors.New("coordinator already bound to a channel")
)

// MessageError identifies the incoming line that aborted a batch.
type MessageError struct {
	Line int    // 1-based position within the batch
	Text string // the offending line, trimmed
	Err  error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("batch line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *MessageError) Unwrap() error { return e.Err }

// LedgerError identifies the ledger line that failed to load.
type LedgerError struct {
	Line int // 1-based line number in replay order
	Err  error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger line %d: %v", e.Line, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }
