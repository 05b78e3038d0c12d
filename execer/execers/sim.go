package execers

import (
	"strconv"
	"strings"
	"sync"
	"time"

	commonerrors "github.com/cmh1027/gaussian-splatting-lightning/common/errors"
	"github.com/cmh1027/gaussian-splatting-lightning/execer"
)

func NewSimExecer() *SimExecer {
	return &SimExecer{}
}

// SimExecer execs by simulating running argv.
// Each arg in command.Argv is simulated in order.
// Valid args are:
//
//	complete <exitcode int>
//	  finish with exitcode
//	sleep <millis int>
//	  sleep for millis milliseconds
//	stdout <message>
//	  deliver <message> to the sink
//	stderr <message>
//	  deliver <message> to the sink
//
// Unrecognized args are ignored, so a real-looking training argv can be fed
// through unchanged with a trailing "complete 0".
type SimExecer struct {
	mu    sync.Mutex
	execs [][]string
}

func (e *SimExecer) Exec(command execer.Command) (execer.Process, error) {
	e.mu.Lock()
	e.execs = append(e.execs, command.Argv)
	e.mu.Unlock()

	steps := e.parse(command.Argv)
	p := &simProcess{sink: command.Sink}
	p.done = sync.NewCond(&p.mu)
	p.status.State = execer.RUNNING
	go p.run(steps)
	return p, nil
}

// ExecCount reports how many commands were launched; the resumption tests
// assert on zero launches for an already-completed batch.
func (e *SimExecer) ExecCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.execs)
}

// LastArgv returns the most recently launched argv, or nil.
func (e *SimExecer) LastArgv() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.execs) == 0 {
		return nil
	}
	return e.execs[len(e.execs)-1]
}

func (e *SimExecer) parse(argv []string) (steps []simStep) {
	for _, arg := range argv {
		splits := strings.SplitN(arg, " ", 2)
		opcode, rest := splits[0], ""
		if len(splits) == 2 {
			rest = splits[1]
		}
		switch opcode {
		case "complete":
			if i, err := strconv.Atoi(rest); err == nil {
				steps = append(steps, &completeStep{i})
			}
		case "sleep":
			if i, err := strconv.Atoi(rest); err == nil {
				steps = append(steps, &sleepStep{time.Duration(i) * time.Millisecond})
			}
		case "stdout", "stderr":
			steps = append(steps, &outputStep{rest})
		}
	}
	return steps
}

type simProcess struct {
	sink   execer.LineSink
	status execer.ProcessStatus
	done   *sync.Cond
	mu     sync.Mutex
}

func (p *simProcess) run(steps []simStep) {
	for _, step := range steps {
		if p.currentStatus().State.IsDone() {
			return
		}
		step.run(p)
	}
	// argv without a complete step behaves like a clean exit
	p.setStatus(execer.ProcessStatus{State: execer.COMPLETE, ExitCode: 0})
}

func (p *simProcess) Wait() execer.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.status.State.IsDone() {
		p.done.Wait()
	}
	return p.status
}

func (p *simProcess) currentStatus() execer.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *simProcess) setStatus(status execer.ProcessStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.State.IsDone() {
		return
	}
	p.status = status
	if p.status.State.IsDone() {
		p.done.Broadcast()
	}
}

type simStep interface {
	run(p *simProcess)
}

type completeStep struct {
	exitCode int
}

func (s *completeStep) run(p *simProcess) {
	p.setStatus(execer.ProcessStatus{
		State:    execer.COMPLETE,
		ExitCode: commonerrors.ExitCode(s.exitCode),
	})
}

type sleepStep struct {
	duration time.Duration
}

func (s *sleepStep) run(p *simProcess) {
	time.Sleep(s.duration)
}

type outputStep struct {
	message string
}

func (s *outputStep) run(p *simProcess) {
	if p.sink != nil {
		p.sink(s.message)
	}
}

// NewDoneExecer returns an execer whose every command immediately completes
// with exit code 0.
func NewDoneExecer() execer.Execer {
	return &doneExecer{}
}

type doneExecer struct{}

var completeStatus = execer.ProcessStatus{State: execer.COMPLETE, ExitCode: 0}

func (e *doneExecer) Exec(command execer.Command) (execer.Process, error) {
	return e, nil
}

func (e *doneExecer) Wait() execer.ProcessStatus {
	return completeStatus
}
