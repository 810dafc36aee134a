package model

import (
	"errors"
	"fmt"
)

// ExitCode defines the process exit codes of the CLI. Scripts can rely
// on them to tell configuration problems from runtime failures.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigNotFound indicates the configuration file does not exist.
	ExitConfigNotFound ExitCode = 2

	// ExitInvalidConfig indicates the configuration could not be parsed
	// or failed validation.
	ExitInvalidConfig ExitCode = 3

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 4

	// ExitSyncNotFound indicates a sync point name that is not configured.
	ExitSyncNotFound ExitCode = 5

	// ExitPortUnavailable indicates the sync host port is already taken.
	ExitPortUnavailable ExitCode = 6

	// ExitWorkerFailed indicates a worker failed while running or syncing.
	ExitWorkerFailed ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ExitCodeOf returns the exit code carried by the first CLIError in err's
// chain, or ExitGeneralError when there is none.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return ExitGeneralError
}

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("config not found")

	// ErrMissingSyncsSection is returned when the document has no "syncs" mapping.
	ErrMissingSyncsSection = errors.New("no syncs defined")
)

// MissingFieldError reports a mandatory field that a sync point lacks.
type MissingFieldError struct {
	// SyncName is the sync point that failed validation.
	SyncName string

	// Field is the configuration key that is missing (e.g. "src").
	Field string
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s does not have %s configuration value set - this is mandatory", e.SyncName, e.Field)
}

// InvalidFieldError reports a field whose value has the wrong shape.
type InvalidFieldError struct {
	SyncName string
	Field    string
	Err      error
}

// Error implements the error interface.
func (e *InvalidFieldError) Error() string {
	if e.SyncName == "" {
		return fmt.Sprintf("invalid value for %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s has an invalid %s value: %v", e.SyncName, e.Field, e.Err)
}

// Unwrap returns the decoding error.
func (e *InvalidFieldError) Unwrap() error {
	return e.Err
}

// UnknownSyncNameError is returned when a lifecycle call is scoped to a
// sync point that is not configured.
type UnknownSyncNameError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownSyncNameError) Error() string {
	return fmt.Sprintf("could not find sync configuration with name %s", e.Name)
}

// WorkerRuntimeError wraps a failure surfaced while waiting on a worker's
// background thread or process.
type WorkerRuntimeError struct {
	// Worker is the sync point name of the failing worker.
	Worker string

	// Err is the failure returned or recovered from the background work.
	Err error
}

// Error implements the error interface.
func (e *WorkerRuntimeError) Error() string {
	return fmt.Sprintf("worker %s: %v", e.Worker, e.Err)
}

// Unwrap returns the underlying failure.
func (e *WorkerRuntimeError) Unwrap() error {
	return e.Err
}
