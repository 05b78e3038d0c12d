package training

import (
	"path/filepath"

	"github.com/cmh1027/gaussian-splatting-lightning/scaling"
)

// buildArgs assembles the argument vector for one partition's training
// invocation. Group order is a contract with the trainer's last-wins flag
// parser: base tokens, data parser, config file, variant overridable args,
// pass-through training args, variant dataset args, scaled hyper-params,
// fixed identity flags, and variant final args last so they win.
func (t *PartitionTraining) buildArgs(partitionIdx, maxSteps int, scaled map[string]int) []string {
	experimentName := t.ExperimentName(partitionIdx)

	args := []string{"python", "main.py", "fit"}
	if parserName, ok := t.variant.DataParserName(); ok {
		args = append(args, "--data.parser", parserName)
	}
	if t.config.ConfigFile != "" {
		args = append(args, "--config="+t.config.ConfigFile)
	}
	args = append(args, t.variant.OverridablePartitionArgs(partitionIdx)...)
	args = append(args, t.config.TrainingArgs...)
	args = append(args, t.variant.DatasetArgs(partitionIdx)...)
	args = append(args, scaling.ToArgs(maxSteps, scaled)...)
	args = append(args,
		"-n="+experimentName,
		"--data.path", t.datasetDir,
		"--project", t.config.ProjectName,
		"--output", t.projectOutputDir,
		"--logger", "wandb",
	)
	args = append(args, t.variant.FinalPartitionArgs(partitionIdx)...)

	if t.config.ClusterMode() {
		outputFile := filepath.Join(t.SrunOutputDir(), experimentName+".txt")
		wrapped := []string{
			"srun",
			"--output=" + outputFile,
			"--job-name=" + t.config.ProjectName + "-" + experimentName,
		}
		wrapped = append(wrapped, t.config.SrunArgs...)
		args = append(wrapped, args...)
	}
	return args
}
