package routine

import "errors"

// Failure kinds. A StepError matches its kind with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrSelectorNotFound    = errors.New("selector not found")
	ErrAssertion           = errors.New("assertion failed")
	ErrTimeout             = errors.New("timed out")
	ErrCallback            = errors.New("callback failed")
	ErrUnrecognizedCommand = errors.New("unrecognized command")
	ErrEnvironment         = errors.New("target environment error")
	ErrStopped             = errors.New("stopped")
	ErrAlreadyRunning      = errors.New("already running")
)

// StepError is a classified failure of a single action or of the run setup.
type StepError struct {
	Kind    error
	Message string
	Value   string // offending input, quoted in the log entry when set
	Err     error  // underlying cause, if any

	// fatal failures halt the run even with continueOnFailure.
	fatal bool
}

func (e *StepError) Error() string {
	if e.Value == "" {
		return e.Message
	}
	return e.Message + ": '" + e.Value + "'"
}

func (e *StepError) Is(target error) bool { return target == e.Kind }

func (e *StepError) Unwrap() error { return e.Err }

// Fatal reports whether the failure halts the run regardless of continueOnFailure.
func (e *StepError) Fatal() bool { return e.fatal }

func stepErr(kind error, message, value string) *StepError {
	return &StepError{Kind: kind, Message: message, Value: value}
}

func fatalErr(kind error, message, value string) *StepError {
	return &StepError{Kind: kind, Message: message, Value: value, fatal: true}
}

// envErr classifies an error raised by the target environment.
func envErr(err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return &StepError{Kind: ErrEnvironment, Message: "Unexpected error", Value: err.Error(), Err: err}
}
