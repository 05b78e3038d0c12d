package os

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"

	commonerrors "github.com/cmh1027/gaussian-splatting-lightning/common/errors"
	"github.com/cmh1027/gaussian-splatting-lightning/execer"

	log "github.com/sirupsen/logrus"
)

// Implements execer.Execer on top of os/exec.
type osExecer struct {
	// scanBuf bounds the longest line delivered to the sink in one call.
	// Longer lines arrive split into scanBuf-sized chunks.
	scanBuf int
}

const defaultScanBuf = 1024 * 1024

func NewExecer() *osExecer {
	return &osExecer{scanBuf: defaultScanBuf}
}

// Exec starts command as a child process with no stdin and both output
// streams piped. Each stream is drained line-by-line by its own goroutine
// into the command's sink, so neither pipe's buffer can fill and stall the
// child while the other is being read.
func (e *osExecer) Exec(command execer.Command) (execer.Process, error) {
	if len(command.Argv) == 0 {
		return nil, commonerrors.NewError(errors.New("no command specified"), commonerrors.CouldNotExecExitCode)
	}

	cmd := exec.Command(command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Dir
	cmd.Env = os.Environ()
	// nil Stdin means the child reads from the null device; there is no
	// input channel to a training run.
	cmd.Stdin = nil

	// Use pipes rather than handing Wait our own writers, so we control when
	// draining finishes relative to cmd.Wait.
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, commonerrors.NewError(err, commonerrors.CouldNotExecExitCode)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, commonerrors.NewError(err, commonerrors.CouldNotExecExitCode)
	}

	sink := serializeSink(command.Sink)
	var wg sync.WaitGroup
	wg.Add(2)
	go e.drain(stdoutPipe, sink, &wg, command.LogTags.Fields())
	go e.drain(stderrPipe, sink, &wg, command.LogTags.Fields())

	if err := cmd.Start(); err != nil {
		return nil, commonerrors.NewError(err, commonerrors.CouldNotExecExitCode)
	}

	return &process{cmd: cmd, wg: &wg, LogTags: command.LogTags}, nil
}

// drain reads r to end-of-stream, delivering lines to sink. A line longer
// than scanBuf is delivered in buffer-sized chunks rather than stalling the
// read: the child must never block on a full pipe while the other stream is
// still open, or Wait would hang.
func (e *osExecer) drain(r io.Reader, sink execer.LineSink, wg *sync.WaitGroup, fields log.Fields) {
	defer wg.Done()
	reader := bufio.NewReaderSize(r, e.scanBuf)
	for {
		chunk, err := reader.ReadSlice('\n')
		if err == nil {
			line := strings.TrimSuffix(string(chunk), "\n")
			sink(strings.TrimSuffix(line, "\r"))
			continue
		}
		if len(chunk) > 0 {
			sink(string(chunk))
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != io.EOF {
			// The pipe broke. The child's exit status is still
			// authoritative, so just note it.
			log.WithFields(fields).Warnf("Stopped draining output stream: %v", err)
		}
		return
	}
}

// serializeSink wraps sink so the two drain goroutines never interleave a
// call. A nil sink discards.
func serializeSink(sink execer.LineSink) execer.LineSink {
	if sink == nil {
		return func(string) {}
	}
	var mu sync.Mutex
	return func(line string) {
		mu.Lock()
		defer mu.Unlock()
		sink(line)
	}
}
