package training

import (
	"context"
	"os"
	"reflect"
	"runtime"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	commonerrors "github.com/cmh1027/gaussian-splatting-lightning/common/errors"
	"github.com/cmh1027/gaussian-splatting-lightning/execer/execers"
	"github.com/cmh1027/gaussian-splatting-lightning/scaling"
)

func newTraining(t *testing.T, config Config, variant Variant, exec *execers.SimExecer) *PartitionTraining {
	t.Helper()
	pt, err := New(config, variant, exec, nil)
	if err != nil {
		t.Fatal(err)
	}
	return pt
}

// Location sums are 5, 20 and 30 against minImages 10: partition 0 is
// excluded, regardless of allowlist contents.
func TestTrainableIndices(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	pt := newTraining(t, config, ColmapVariant{}, execers.NewSimExecer())

	indices, err := pt.TrainableIndices()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(indices, []int{1, 2}) {
		t.Fatalf("Expected trainable set {1, 2}, got %v", indices)
	}
}

func TestTrainableIndicesAllowlist(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	// "0_0" is eligible-filtered out already; "nope" is not in the index and
	// is silently ignored
	config.PartitionIDs = []string{"2_0", "0_0", "nope"}
	pt := newTraining(t, config, ColmapVariant{}, execers.NewSimExecer())

	indices, err := pt.TrainableIndices()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(indices, []int{2}) {
		t.Fatalf("Expected {2}, got %v", indices)
	}
}

func TestTrainableIndicesSharded(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	config.NProcesses = 2

	config.ProcessID = 0
	first, err := newTraining(t, config, ColmapVariant{}, execers.NewSimExecer()).TrainableIndices()
	if err != nil {
		t.Fatal(err)
	}
	config.ProcessID = 1
	second, err := newTraining(t, config, ColmapVariant{}, execers.NewSimExecer()).TrainableIndices()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, []int{1}) || !reflect.DeepEqual(second, []int{2}) {
		t.Fatalf("Unexpected shards: %v / %v", first, second)
	}
}

func TestTrainPartitionsSucceedsAndRecords(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	exec := execers.NewSimExecer()
	pt := newTraining(t, config, ColmapVariant{}, exec)

	outcomes, err := pt.TrainPartitions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %s", spew.Sdump(outcomes))
	}
	for _, o := range outcomes {
		if o.ExitCode != 0 {
			t.Fatalf("Expected success, got %s", spew.Sdump(o))
		}
	}
	if exec.ExecCount() != 2 {
		t.Fatalf("Expected 2 launches, got %d", exec.ExecCount())
	}
	for _, idx := range []int{1, 2} {
		if _, ok := pt.ledger.TrainedSteps(pt.ExperimentName(idx)); !ok {
			t.Fatalf("Expected a trained marker for partition %d", idx)
		}
	}
}

// Running the orchestrator twice with unchanged config skips every
// previously-completed partition: zero launches the second time.
func TestIdempotentSecondRun(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))

	first := execers.NewSimExecer()
	if _, err := newTraining(t, config, ColmapVariant{}, first).TrainPartitions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if first.ExecCount() != 2 {
		t.Fatalf("Expected 2 launches on the first run, got %d", first.ExecCount())
	}

	second := execers.NewSimExecer()
	outcomes, err := newTraining(t, config, ColmapVariant{}, second).TrainPartitions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.ExecCount() != 0 {
		t.Fatalf("Expected 0 launches on the second run, got %d", second.ExecCount())
	}
	for _, o := range outcomes {
		if o.ExitCode != 0 {
			t.Fatalf("Skipped partitions must report success, got %s", spew.Sdump(o))
		}
	}
}

// An increased budget re-enables a previously-completed partition: the
// ledger comparison is prior >= maxSteps, not equality.
func TestBudgetIncreaseReattempts(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	if _, err := newTraining(t, config, ColmapVariant{}, execers.NewSimExecer()).TrainPartitions(context.Background()); err != nil {
		t.Fatal(err)
	}

	config.ExtraEpoches = 1
	exec := execers.NewSimExecer()
	if _, err := newTraining(t, config, ColmapVariant{}, exec).TrainPartitions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if exec.ExecCount() != 2 {
		t.Fatalf("Expected a larger budget to re-attempt both partitions, got %d launches", exec.ExecCount())
	}
}

// Marker holding exactly the recomputed budget skips; a smaller one attempts.
func TestMarkerComparison(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	pt := newTraining(t, config, ColmapVariant{}, execers.NewSimExecer())

	maxSteps, _, _, err := scaling.Scale(
		pt.Index().ImageCount(2), 0, config.ScalableParams, nil, config.ScaleMode)
	if err != nil {
		t.Fatal(err)
	}
	if err := pt.ledger.RecordTrained(pt.ExperimentName(2), maxSteps); err != nil {
		t.Fatal(err)
	}
	if err := pt.ledger.RecordTrained(pt.ExperimentName(1), maxSteps-1); err != nil {
		t.Fatal(err)
	}

	exec := execers.NewSimExecer()
	pt2 := newTraining(t, config, ColmapVariant{}, exec)
	if _, err := pt2.TrainPartitions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if exec.ExecCount() != 1 {
		t.Fatalf("Expected only the under-budget partition to launch, got %d", exec.ExecCount())
	}
}

// A failed attempt is recorded and the batch continues; no marker is written
// so a later run re-attempts it.
func TestFailureRecordedNotRetriedInline(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	variant := testVariant{exitCodes: map[int]int{1: 7}}

	exec := execers.NewSimExecer()
	pt := newTraining(t, config, variant, exec)
	outcomes, err := pt.TrainPartitions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("A failure must not abort the batch: %s", spew.Sdump(outcomes))
	}
	byIndex := map[int]commonerrors.ExitCode{}
	for _, o := range outcomes {
		byIndex[o.Index] = o.ExitCode
	}
	if byIndex[1] != 7 || byIndex[2] != 0 {
		t.Fatalf("Unexpected outcomes: %s", spew.Sdump(outcomes))
	}

	if _, err := os.Stat(pt.ledger.Path(pt.ExperimentName(1))); !os.IsNotExist(err) {
		t.Fatal("A failed run must not write the trained marker")
	}

	// the failed partition is attempted again on the next run
	second := execers.NewSimExecer()
	pt2 := newTraining(t, config, variant, second)
	if _, err := pt2.TrainPartitions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if second.ExecCount() != 1 {
		t.Fatalf("Expected only the failed partition to relaunch, got %d", second.ExecCount())
	}
}

// Dry-run assembles and displays commands but launches nothing and writes
// nothing.
func TestDryRun(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	config.DryRun = true

	exec := execers.NewSimExecer()
	pt := newTraining(t, config, ColmapVariant{}, exec)
	outcomes, err := pt.TrainPartitions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if exec.ExecCount() != 0 {
		t.Fatalf("Dry-run launched %d processes", exec.ExecCount())
	}
	for _, o := range outcomes {
		if o.ExitCode != commonerrors.NotAttemptedExitCode {
			t.Fatalf("Expected not-attempted outcomes, got %s", spew.Sdump(o))
		}
	}
	if _, err := os.Stat(pt.ProjectOutputDir()); !os.IsNotExist(err) {
		t.Fatal("Dry-run must not create output state")
	}
}

// With srun args configured every partition runs under the concurrent
// strategy and completions are drained as they finish.
func TestConcurrentStrategy(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	config.SrunArgs = []string{"--partition=gpu"}

	exec := execers.NewSimExecer()
	pt := newTraining(t, config, ColmapVariant{}, exec)
	outcomes, err := pt.TrainPartitions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 || exec.ExecCount() != 2 {
		t.Fatalf("Expected both partitions supervised, got %s", spew.Sdump(outcomes))
	}
	if argv := exec.LastArgv(); argv[0] != "srun" {
		t.Fatalf("Expected srun-wrapped argv, got %v", argv)
	}
	if _, err := os.Stat(pt.SrunOutputDir()); err != nil {
		t.Fatalf("Expected the srun output dir to exist: %v", err)
	}
}

// Cancellation propagates out of the batch instead of being recorded as a
// partition failure.
func TestCancellationAbortsBatch(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	exec := execers.NewSimExecer()
	pt := newTraining(t, config, ColmapVariant{}, exec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pt.TrainPartitions(ctx); err == nil {
		t.Fatal("Expected the canceled context to abort the batch")
	}
	if exec.ExecCount() != 0 {
		t.Fatalf("Expected no launches after cancellation, got %d", exec.ExecCount())
	}
}

// sleepVariant keeps sim children running long enough for a cancellation to
// land mid-batch.
type sleepVariant struct{}

func (sleepVariant) DataParserName() (string, bool) { return "Colmap", true }

func (sleepVariant) OverridablePartitionArgs(int) []string { return nil }

func (sleepVariant) DatasetArgs(int) []string { return nil }

func (sleepVariant) FinalPartitionArgs(int) []string { return []string{"sleep 300"} }

// A mid-run cancellation returns early from the batch, but the abandoned
// workers must still terminate on their own once their children exit instead
// of blocking on the results channel forever.
func TestConcurrentWorkersExitAfterCancellation(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	config.SrunArgs = []string{"--partition=gpu"}
	pt := newTraining(t, config, sleepVariant{}, execers.NewSimExecer())

	before := runtime.NumGoroutine()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)
	if _, err := pt.TrainPartitions(ctx); err == nil {
		t.Fatal("Expected the canceled context to abort the batch")
	}

	deadline := time.Now().Add(5 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := runtime.NumGoroutine(); n > before {
		t.Fatalf("Expected workers to exit after cancellation, %d goroutines remain of %d", n, before)
	}
}

func TestInvalidShardConfigFatal(t *testing.T) {
	config := testConfig(t, writePartitionIndex(t))
	config.ProcessID = 5
	if _, err := New(config, ColmapVariant{}, execers.NewSimExecer(), nil); err == nil {
		t.Fatal("Expected an out-of-range process id to fail construction")
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []Outcome{
		{Index: 0, ExitCode: 0},
		{Index: 1, ExitCode: 7},
		{Index: 2, ExitCode: commonerrors.NotAttemptedExitCode},
	}
	s := Summarize(outcomes)
	if s.Total != 3 || s.Succeeded != 1 || s.Failed != 1 || s.NotAttempted != 1 {
		t.Fatalf("Unexpected summary: %+v", s)
	}
}
