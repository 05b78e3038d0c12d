package os

import (
	"os/exec"
	"sync"
	"syscall"

	commonerrors "github.com/cmh1027/gaussian-splatting-lightning/common/errors"
	"github.com/cmh1027/gaussian-splatting-lightning/common/log/tags"
	"github.com/cmh1027/gaussian-splatting-lightning/execer"

	log "github.com/sirupsen/logrus"
)

// Implements execer.Process.
type process struct {
	cmd    *exec.Cmd
	wg     *sync.WaitGroup
	result *execer.ProcessStatus
	mutex  sync.Mutex
	tags.LogTags
}

// Wait for the process to finish.
// If the command finishes without error return COMPLETE and exit code 0.
// If the command fails and the exit code is recoverable, return COMPLETE with
// that code. Otherwise return FAILED with the error that hid the exit code.
func (p *process) Wait() (result execer.ProcessStatus) {
	// Join the drain goroutines before waiting on the process itself, so
	// trailing output is delivered before the pipes are torn down.
	p.wg.Wait()
	pid := p.cmd.Process.Pid

	err := p.cmd.Wait()
	log.WithFields(p.Fields()).Debugf("Finished waiting for process %d", pid)

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.result != nil {
		return *p.result
	}
	p.result = &result

	if err == nil {
		result.State = execer.COMPLETE
		result.ExitCode = 0
		return result
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.State = execer.COMPLETE
			result.ExitCode = commonerrors.ExitCode(status.ExitStatus())
			return result
		}
		result.State = execer.FAILED
		result.ExitCode = commonerrors.CouldNotWaitExitCode
		result.Error = "could not find WaitStatus from exitErr.Sys()"
		return result
	}
	result.State = execer.FAILED
	result.ExitCode = commonerrors.CouldNotWaitExitCode
	result.Error = err.Error()
	return result
}
