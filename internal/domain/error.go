package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Orchestration errors
	ErrUnknownProvider      = errors.New("unknown provider")
	ErrJobTerminal          = errors.New("job already in a terminal state")
	ErrResultNotReady       = errors.New("transcription result not ready")
	ErrUnsupportedOperation = errors.New("operation not supported by provider")
	ErrPollBudgetExceeded   = errors.New("poll budget exceeded waiting for provider")
	ErrReadDatabaseRow      = errors.New("failed to read database row")
	ErrInvalidExecContext   = errors.New("invalid execution context for query")
)

// MissingCredentialsError rejects a whole submission batch: no job records
// are created when any requested provider has no stored credential.
type MissingCredentialsError struct {
	Providers []string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("missing credentials for providers: %s", strings.Join(e.Providers, ", "))
}

// CapabilityError is a caller error raised before submission when the
// requested config asks for a feature the provider cannot deliver.
type CapabilityError struct {
	Provider string
	Feature  string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("provider %s does not support %s", e.Provider, e.Feature)
}

// ProviderError wraps a failure from an external transcription service.
// Transient failures (timeouts, 5xx, rate limits) are retried at submission;
// permanent ones (auth, validation) fail the job immediately.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
