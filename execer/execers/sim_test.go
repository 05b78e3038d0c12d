package execers

import (
	"testing"

	"github.com/cmh1027/gaussian-splatting-lightning/execer"
)

func TestSimExecerScriptedRun(t *testing.T) {
	e := NewSimExecer()
	var lines []string
	proc, err := e.Exec(execer.Command{
		Argv: []string{"stdout hello", "stderr oops", "complete 3"},
		Sink: func(line string) { lines = append(lines, line) },
	})
	if err != nil {
		t.Fatal(err)
	}
	status := proc.Wait()
	if status.State != execer.COMPLETE || status.ExitCode != 3 {
		t.Fatalf("Unexpected status: %+v", status)
	}
	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "oops" {
		t.Fatalf("Unexpected output: %v", lines)
	}
	if e.ExecCount() != 1 {
		t.Fatalf("Expected 1 exec, got %d", e.ExecCount())
	}
}

// Unrecognized argv elements are ignored so realistic command vectors run
// cleanly.
func TestSimExecerIgnoresUnknownArgs(t *testing.T) {
	e := NewSimExecer()
	proc, err := e.Exec(execer.Command{
		Argv: []string{"python", "main.py", "fit", "--max_steps", "30000"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if status := proc.Wait(); status.State != execer.COMPLETE || status.ExitCode != 0 {
		t.Fatalf("Unexpected status: %+v", status)
	}
}
