package upload

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures by who is at fault.
type Kind int

const (
	// KindClientInput is a bad, oversized or mistyped upload.
	KindClientInput Kind = iota + 1
	// KindProcessing is a remux or probe failure.
	KindProcessing
	// KindStorage is an object store or metadata store failure.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindProcessing:
		return "processing"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is returned by every failing pipeline stage. Message is safe to show
// to the caller; Err carries the underlying cause, including tool output.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func clientError(msg string, err error) error {
	return &Error{Kind: KindClientInput, Message: msg, Err: err}
}

func processingError(msg string, err error) error {
	return &Error{Kind: KindProcessing, Message: msg, Err: err}
}

func storageError(msg string, err error) error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
