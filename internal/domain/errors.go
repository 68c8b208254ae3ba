package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a stream connection error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "read", "ping")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a startup configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DecodeErrorKind classifies why an inbound message was dropped.
type DecodeErrorKind int

const (
	MalformedPayload DecodeErrorKind = iota + 1
	SubscriptionMismatch
)

func (k DecodeErrorKind) String() string {
	switch k {
	case MalformedPayload:
		return "malformed_payload"
	case SubscriptionMismatch:
		return "subscription_mismatch"
	default:
		return "unknown"
	}
}

// DecodeError is returned by the tick decoder. The message is dropped and the
// session keeps running.
type DecodeError struct {
	Kind   DecodeErrorKind
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode error [" + e.Kind.String() + "]: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) IsRetriable() bool {
	return false
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeKind reports whether err is a DecodeError of the given kind.
func IsDecodeKind(err error, kind DecodeErrorKind) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// PipelineErrorKind classifies why an estimate was skipped.
type PipelineErrorKind int

const (
	InsufficientDepth PipelineErrorKind = iota + 1
	ModelFailure
)

func (k PipelineErrorKind) String() string {
	switch k {
	case InsufficientDepth:
		return "insufficient_depth"
	case ModelFailure:
		return "model_failure"
	default:
		return "unknown"
	}
}

// PipelineError skips a single estimate; the worker moves on to the next tick.
type PipelineError struct {
	Kind  PipelineErrorKind
	Model string // Model that failed, empty for depth errors
	Err   error
}

func (e *PipelineError) Error() string {
	msg := "pipeline error [" + e.Kind.String() + "]"
	if e.Model != "" {
		msg += " " + e.Model
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsPipelineKind reports whether err is a PipelineError of the given kind.
func IsPipelineKind(err error, kind PipelineErrorKind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

var (
	// ErrQueueOverflow is reported when the dispatch queue drops its oldest tick.
	ErrQueueOverflow = errors.New("queue overflow")

	// ErrDispatcherStopped is returned when enqueueing after shutdown.
	ErrDispatcherStopped = errors.New("dispatcher stopped")

	// ErrEmptyBook is returned when a side of the book has no levels.
	ErrEmptyBook = errors.New("empty book side")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
