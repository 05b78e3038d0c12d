package errors

type ExitCodeError struct {
	code ExitCode
	error
}

func NewError(err error, exitCode ExitCode) *ExitCodeError {
	if err == nil {
		return nil
	}
	return &ExitCodeError{exitCode, err}
}

func (e *ExitCodeError) GetExitCode() ExitCode {
	if e == nil {
		return 0
	}
	return e.code
}

// CodeFromError maps an arbitrary error to the exit code it should be
// recorded under. Errors without an embedded code never reached exec.
func CodeFromError(err error) ExitCode {
	if err == nil {
		return 0
	}
	if ec, ok := err.(*ExitCodeError); ok {
		return ec.GetExitCode()
	}
	return NotAttemptedExitCode
}
