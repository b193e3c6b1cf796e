package tasks

// insufficientCreditsError signals denied admission for 402 mapping.
// Submit has no side effect when it is returned.
type insufficientCreditsError struct {
	userID string
	cost   int64
}

func (e insufficientCreditsError) Error() string { return "insufficient credits" }

// IsInsufficientCredits reports whether err indicates denied credit admission.
func IsInsufficientCredits(err error) bool {
	_, ok := err.(insufficientCreditsError)
	return ok
}

// taskNotFoundError signals an unknown task id for 404 mapping.
type taskNotFoundError struct{ id string }

func (e taskNotFoundError) Error() string { return "task not found: " + e.id }

// IsTaskNotFound reports whether err indicates a missing task id.
func IsTaskNotFound(err error) bool {
	_, ok := err.(taskNotFoundError)
	return ok
}

// invalidParamsError signals malformed generation parameters.
type invalidParamsError struct{ msg string }

func (e invalidParamsError) Error() string { return e.msg }

// ErrInvalidParams constructs an invalidParamsError.
func ErrInvalidParams(msg string) error { return invalidParamsError{msg: msg} }

// IsInvalidParams reports whether err indicates malformed parameters.
func IsInvalidParams(err error) bool {
	_, ok := err.(invalidParamsError)
	return ok
}

// tooBusyError signals a full execution queue for 429 mapping. The
// deduction is compensated before it is returned.
type tooBusyError struct{}

func (tooBusyError) Error() string { return "too busy: execution queue full" }

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}
