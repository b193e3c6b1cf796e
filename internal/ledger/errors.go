package ledger

// userNotFoundError signals an unknown account for 404 mapping.
type userNotFoundError struct{ userID string }

func (e userNotFoundError) Error() string { return "user not found: " + e.userID }

// IsUserNotFound reports whether err indicates an unknown account.
func IsUserNotFound(err error) bool {
	_, ok := err.(userNotFoundError)
	return ok
}

// invalidAmountError signals a zero/negative amount for 400 mapping.
type invalidAmountError struct{ msg string }

func (e invalidAmountError) Error() string { return e.msg }

// ErrInvalidAmount constructs an invalidAmountError.
func ErrInvalidAmount(msg string) error { return invalidAmountError{msg: msg} }

// IsInvalidAmount reports whether err indicates a malformed amount.
func IsInvalidAmount(err error) bool {
	_, ok := err.(invalidAmountError)
	return ok
}

// accountExistsError signals a duplicate CreateAccount call.
type accountExistsError struct{ userID string }

func (e accountExistsError) Error() string { return "account already exists: " + e.userID }

// IsAccountExists reports whether err indicates a duplicate account.
func IsAccountExists(err error) bool {
	_, ok := err.(accountExistsError)
	return ok
}
