package training

import (
	"github.com/pkg/errors"

	"github.com/cmh1027/gaussian-splatting-lightning/scaling"
)

// Config is the immutable per-run configuration of a partition training
// batch. It is assembled once by the CLI layer and read-only afterwards.
type Config struct {
	// PartitionDir holds the persisted partition index. Its parent directory
	// is the dataset directory passed to the trainer.
	PartitionDir string

	ProjectName string

	// MinImages excludes partitions whose location-based assignment count is
	// below it.
	MinImages int

	// NProcesses and ProcessID shard the trainable partitions across
	// cooperating orchestrator processes.
	NProcesses int
	ProcessID  int

	// DryRun displays assembled commands without launching anything.
	DryRun bool

	ExtraEpoches int
	NameSuffix   string

	ScalableParams           map[string]int
	ExtraEpochScalableParams []string
	ScaleMode                scaling.Mode

	// PartitionIDs optionally restricts the shard to the listed id strings.
	// nil means no restriction. Ids not present in the index are ignored.
	PartitionIDs []string

	// TrainingArgs are passed through to the trainer between the overridable
	// and dataset-specific argument groups.
	TrainingArgs []string

	// SrunArgs, when non-empty, switch the batch to cluster submission: every
	// command is wrapped with an srun prefix and partitions run concurrently.
	SrunArgs []string

	// ConfigFile optionally points the trainer at an external config.
	ConfigFile string

	// OutputBase is the directory holding per-project output dirs. Empty
	// means "outputs" under the working directory.
	OutputBase string
}

func (c *Config) Validate() error {
	if c.PartitionDir == "" {
		return errors.New("partition dir is required")
	}
	if c.ProjectName == "" {
		return errors.New("project name is required")
	}
	if c.NProcesses <= 0 {
		return errors.Errorf("n processes must be positive, got %d", c.NProcesses)
	}
	if c.ProcessID < 0 || c.ProcessID >= c.NProcesses {
		return errors.Errorf("process id %d out of range [0, %d)", c.ProcessID, c.NProcesses)
	}
	for name, value := range c.ScalableParams {
		if value < 0 {
			return errors.Errorf("scalable param %q must be non-negative, got %d", name, value)
		}
	}
	switch c.ScaleMode {
	case scaling.ModeLinear, scaling.ModeSqrt, scaling.ModeNone:
	default:
		return errors.Errorf("unknown scale mode %q", c.ScaleMode)
	}
	return nil
}

// ClusterMode reports whether commands are delegated to the cluster
// scheduler instead of run as direct local children.
func (c *Config) ClusterMode() bool {
	return len(c.SrunArgs) > 0
}
