package errors

// ExitCode is the result of one partition training attempt. Zero is the
// child's success code, positive values are the child's own failure codes,
// and negative values mean no child exit status exists to report.
type ExitCode int

const (
	// NotAttemptedExitCode marks partitions that were dry-run: the command
	// vector was assembled and displayed but nothing was launched.
	NotAttemptedExitCode ExitCode = -1

	// CouldNotExecExitCode marks attempts that failed before or at launch.
	CouldNotExecExitCode ExitCode = -2

	// CouldNotWaitExitCode marks attempts whose child started but whose exit
	// status could not be recovered.
	CouldNotWaitExitCode ExitCode = -3
)

func (c ExitCode) Success() bool { return c == 0 }

// Attempted reports whether a child process ran to completion, successfully
// or not.
func (c ExitCode) Attempted() bool { return c >= 0 }
