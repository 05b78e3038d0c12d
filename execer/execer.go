package execer

// Execer runs one Unix command for the orchestrator. It is at the level of
// os/exec: it knows nothing about partitions, ledgers, or scaling. The
// orchestrator feeds it an assembled argv and a line sink; everything else
// (or a fake, Cf. execer/execers) is behind this interface.

import (
	"github.com/cmh1027/gaussian-splatting-lightning/common/errors"
	"github.com/cmh1027/gaussian-splatting-lightning/common/log/tags"
)

// LineSink receives one output line at a time, stripped of its trailing
// newline. The execer serializes calls, so implementations need no locking
// of their own.
type LineSink func(line string)

type Command struct {
	Argv []string
	Dir  string

	// Sink gets every line of the child's stdout and stderr, in the order
	// each stream produces it. May be nil to discard output.
	Sink LineSink

	tags.LogTags
}

type ProcessState int

const (
	UNKNOWN ProcessState = iota
	RUNNING
	COMPLETE
	FAILED
)

func (s ProcessState) IsDone() bool {
	return s == COMPLETE || s == FAILED
}

type ProcessStatus struct {
	State    ProcessState
	ExitCode errors.ExitCode
	Error    string
}

type Execer interface {
	Exec(command Command) (Process, error)
}

type Process interface {
	// Wait blocks until both output streams hit end-of-stream and the child
	// has exited, then reports how it went.
	Wait() ProcessStatus
}
