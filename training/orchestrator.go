// Package training orchestrates the training of scene partitions: it
// decides which partitions this worker owns, scales their hyper-parameters,
// skips ones already trained to budget, and supervises one child training
// process per attempted partition, locally or via cluster submission.
package training

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cmh1027/gaussian-splatting-lightning/common"
	commonerrors "github.com/cmh1027/gaussian-splatting-lightning/common/errors"
	"github.com/cmh1027/gaussian-splatting-lightning/common/log/tags"
	"github.com/cmh1027/gaussian-splatting-lightning/common/stats"
	"github.com/cmh1027/gaussian-splatting-lightning/execer"
	"github.com/cmh1027/gaussian-splatting-lightning/partition"
	"github.com/cmh1027/gaussian-splatting-lightning/scaling"
	"github.com/cmh1027/gaussian-splatting-lightning/sharding"
)

// Outcome is the transient result of one partition attempt. ExitCode zero
// means success (including skip-by-ledger); negative codes mean no child ran
// to completion.
type Outcome struct {
	Index    int
	ExitCode commonerrors.ExitCode
}

// PartitionTraining ties the partition index, sharder, scaler, ledger,
// command builder and process supervisor together for one batch run.
type PartitionTraining struct {
	config  Config
	variant Variant
	index   *partition.Index
	exec    execer.Execer
	stat    stats.StatsReceiver
	ledger  Ledger

	datasetDir       string
	projectOutputDir string
	runID            string
}

// New loads the partition index once and prepares a batch run. Index or
// configuration problems are fatal here; nothing has been launched yet.
func New(config Config, variant Variant, exec execer.Execer, stat stats.StatsReceiver) (*PartitionTraining, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}

	index, err := partition.Load(config.PartitionDir)
	if err != nil {
		return nil, err
	}

	outputBase := config.OutputBase
	if outputBase == "" {
		outputBase = "outputs"
	}
	projectOutputDir := filepath.Join(outputBase, config.ProjectName)

	return &PartitionTraining{
		config:           config,
		variant:          variant,
		index:            index,
		exec:             exec,
		stat:             stat.Scope("partitions"),
		ledger:           Ledger{Dir: projectOutputDir},
		datasetDir:       filepath.Dir(strings.TrimRight(config.PartitionDir, "/")),
		projectOutputDir: projectOutputDir,
		runID:            common.GenUUID(),
	}, nil
}

func (t *PartitionTraining) Index() *partition.Index { return t.index }

// ExperimentName is the partition's id string plus the configured suffix; it
// names the trainer experiment, the marker file, and the srun job.
func (t *PartitionTraining) ExperimentName(partitionIdx int) string {
	return t.index.Coordinates[partitionIdx].ID() + t.config.NameSuffix
}

func (t *PartitionTraining) ProjectOutputDir() string { return t.projectOutputDir }

// SrunOutputDir collects per-experiment srun output redirections.
func (t *PartitionTraining) SrunOutputDir() string {
	return filepath.Join(t.projectOutputDir, "srun-outputs")
}

// TrainableIndices computes this worker's filtered partition list:
// eligibility by minimum location-based image count, then the worker's
// shard, then the optional explicit allowlist. Allowlist ids not present in
// the index are silently ignored.
func (t *PartitionTraining) TrainableIndices() ([]int, error) {
	eligible := []int{}
	for i, count := range t.index.LocationCounts() {
		if count >= t.config.MinImages {
			eligible = append(eligible, i)
		}
	}

	shard, err := sharding.TaskList(eligible, t.config.NProcesses, t.config.ProcessID)
	if err != nil {
		return nil, err
	}

	if t.config.PartitionIDs == nil {
		return shard, nil
	}
	allowed := map[string]bool{}
	for _, id := range t.config.PartitionIDs {
		allowed[id] = true
	}
	filtered := []int{}
	for _, idx := range shard {
		if allowed[t.index.Coordinates[idx].ID()] {
			filtered = append(filtered, idx)
		}
	}
	return filtered, nil
}

// TrainOne attempts a single partition. Every failure mode except context
// cancellation is recovered here: logged, counted, and folded into the
// returned Outcome so the batch can continue. A non-nil error is only ever
// the cancellation signal.
func (t *PartitionTraining) TrainOne(ctx context.Context, partitionIdx int) (Outcome, error) {
	logTags := tags.LogTags{
		RunID:        t.runID,
		PartitionIdx: partitionIdx,
		PartitionID:  t.index.Coordinates[partitionIdx].ID(),
	}
	outcome := Outcome{Index: partitionIdx, ExitCode: commonerrors.NotAttemptedExitCode}

	maxSteps, scaled, factor, err := scaling.Scale(
		t.index.ImageCount(partitionIdx),
		t.config.ExtraEpoches,
		t.config.ScalableParams,
		t.config.ExtraEpochScalableParams,
		t.config.ScaleMode,
	)
	if err != nil {
		log.WithFields(logTags.Fields()).Errorf("Hyper-parameter scaling failed: %+v", err)
		t.stat.Counter("failed").Inc(1)
		outcome.ExitCode = commonerrors.CodeFromError(err)
		return outcome, nil
	}

	experimentName := t.ExperimentName(partitionIdx)
	if prior, ok := t.ledger.TrainedSteps(experimentName); ok && prior >= maxSteps {
		log.WithFields(logTags.Fields()).Infof(
			"Skipping trained partition, %d of %d steps already completed", prior, maxSteps)
		t.stat.Counter("skipped").Inc(1)
		outcome.ExitCode = 0
		return outcome, nil
	}

	argv := t.buildArgs(partitionIdx, maxSteps, scaled)

	if t.config.DryRun {
		fmt.Println(strings.Join(argv, " "))
		return outcome, nil
	}

	// An operator interrupt between partitions must stop the batch, not
	// start another child.
	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	log.WithFields(logTags.Fields()).Infof("Launching (scale factor %.2f): %v", factor, argv)
	sink := func(line string) {
		log.WithFields(logTags.Fields()).Info(line)
	}

	start := time.Now()
	t.stat.Counter("launched").Inc(1)
	proc, err := t.exec.Exec(execer.Command{Argv: argv, Sink: sink, LogTags: logTags})
	if err != nil {
		log.WithFields(logTags.Fields()).Errorf("Could not launch training process: %+v", err)
		t.stat.Counter("failed").Inc(1)
		outcome.ExitCode = commonerrors.CodeFromError(err)
		return outcome, nil
	}

	status := proc.Wait()
	t.stat.Latency("latency_ms").Update(stats.Millis(time.Since(start)))
	outcome.ExitCode = status.ExitCode

	if status.State == execer.FAILED {
		log.WithFields(logTags.Fields()).Errorf("Training process failed: %s", status.Error)
	}
	if status.State == execer.COMPLETE && status.ExitCode.Success() {
		t.stat.Counter("succeeded").Inc(1)
		// Only a confirmed full run records progress. A failed write is
		// harmless: the next run re-attempts.
		if err := t.ledger.RecordTrained(experimentName, maxSteps); err != nil {
			log.WithFields(logTags.Fields()).Errorf("Could not record trained marker: %+v", err)
		}
	} else {
		t.stat.Counter("failed").Inc(1)
	}

	if err := ctx.Err(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// TrainPartitions runs the whole batch: sequentially when commands run as
// local children, concurrently when they delegate to the cluster scheduler.
// The returned outcomes cover every partition attempted before a
// cancellation, and the error is non-nil only when the batch was canceled or
// could not start; failed partitions alone never produce an error.
func (t *PartitionTraining) TrainPartitions(ctx context.Context) ([]Outcome, error) {
	indices, err := t.TrainableIndices()
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(indices))
	for i, idx := range indices {
		ids[i] = t.index.Coordinates[idx].ID()
	}
	log.WithField("runID", t.runID).Infof("Trainable partitions: %v", ids)

	if !t.config.ClusterMode() {
		return t.trainSequentially(ctx, indices)
	}
	return t.trainConcurrently(ctx, indices)
}

func (t *PartitionTraining) trainSequentially(ctx context.Context, indices []int) ([]Outcome, error) {
	outcomes := []Outcome{}
	total := len(indices)
	for i, partitionIdx := range indices {
		log.WithField("runID", t.runID).Infof(
			"[%d/%d] Training partition #%d(%s)",
			i+1, total, partitionIdx, t.index.Coordinates[partitionIdx].ID())
		outcome, err := t.TrainOne(ctx, partitionIdx)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

type trainResult struct {
	outcome Outcome
	err     error
}

// trainConcurrently submits every partition to its own goroutine (each child
// delegates the heavy lifting to the cluster scheduler, so local concurrency
// only supervises) and drains completions as they finish. On cancellation
// the drain loop exits immediately; already-submitted workers finish on
// their own and exit through the buffered channel.
func (t *PartitionTraining) trainConcurrently(ctx context.Context, indices []int) ([]Outcome, error) {
	log.WithField("runID", t.runID).Info("SLURM mode enabled")
	if !t.config.DryRun {
		if err := os.MkdirAll(t.SrunOutputDir(), 0777); err != nil {
			return nil, err
		}
		log.WithField("runID", t.runID).Infof(
			"Running outputs will be saved to %q", t.SrunOutputDir())
	}

	total := len(indices)
	// Buffered so that workers outliving an early drain-loop return can
	// still send and exit instead of blocking forever.
	results := make(chan trainResult, total)
	for _, partitionIdx := range indices {
		go func(idx int) {
			outcome, err := t.TrainOne(ctx, idx)
			results <- trainResult{outcome: outcome, err: err}
		}(partitionIdx)
	}

	outcomes := []Outcome{}
	for finished := 0; finished < total; {
		select {
		case <-ctx.Done():
			return outcomes, ctx.Err()
		case r := <-results:
			finished++
			if r.err != nil {
				return outcomes, r.err
			}
			outcomes = append(outcomes, r.outcome)
			log.WithField("runID", t.runID).Infof(
				"#%d(%s) exited with code %d | %d/%d",
				r.outcome.Index,
				t.index.Coordinates[r.outcome.Index].ID(),
				r.outcome.ExitCode,
				finished, total)
		}
	}
	return outcomes, nil
}
