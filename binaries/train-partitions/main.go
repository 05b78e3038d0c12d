package main

// CLI binary to train the partitions of a partitioned scene, one child
// training process per partition. (See "-h" for all options.)
//
//	train-partitions <partition-dir> --project <name> [flags] [-- training args...]
//
// Tokens after "--" are passed through to the trainer unchanged. With
// --srun-args configured, every invocation is wrapped for SLURM submission
// and partitions are supervised concurrently.

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/luci/go-render/render"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cmh1027/gaussian-splatting-lightning/common/log/hooks"
	"github.com/cmh1027/gaussian-splatting-lightning/common/stats"
	osexecer "github.com/cmh1027/gaussian-splatting-lightning/execer/os"
	"github.com/cmh1027/gaussian-splatting-lightning/scaling"
	"github.com/cmh1027/gaussian-splatting-lightning/training"
)

type trainPartitionsCmd struct {
	projectName              string
	minImages                int
	configFile               string
	parts                    []string
	extraEpoches             int
	scalableConfig           string
	scalableParams           []string
	extraEpochScalableParams []string
	scaleParamMode           string
	noDefaultScalable        bool
	dryRun                   bool
	nameSuffix               string
	nProcesses               int
	processID                int
	srunArgs                 []string
	logLevel                 string
}

func main() {
	log.AddHook(hooks.NewContextHook())

	c := &trainPartitionsCmd{}
	rootCmd := &cobra.Command{
		Use:   "train-partitions <partition-dir>",
		Short: "train-partitions trains every partition of a partitioned scene",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return c.run(cmd, args)
		},
	}
	c.registerFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func (c *trainPartitionsCmd) registerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.projectName, "project", "p", "", "project name (required)")
	cmd.Flags().IntVarP(&c.minImages, "min-images", "m", 32, "ignore partitions with fewer location-assigned images than this")
	cmd.Flags().StringVarP(&c.configFile, "config", "c", "", "trainer config file")
	cmd.Flags().StringArrayVar(&c.parts, "parts", nil, "explicit partition id allowlist")
	cmd.Flags().IntVarP(&c.extraEpoches, "extra-epoches", "e", 0, "extra epochs added to every partition's step budget")
	cmd.Flags().StringVar(&c.scalableConfig, "scalable-config", "", "load scalable params from a yaml file")
	cmd.Flags().StringArrayVar(&c.scalableParams, "scalable-params", nil, "scalable param overrides, name=value")
	cmd.Flags().StringArrayVar(&c.extraEpochScalableParams, "extra-epoch-scalable-params", nil, "extra-epoch scalable param names")
	cmd.Flags().StringVar(&c.scaleParamMode, "scale-param-mode", "linear", "scaling mode: linear|sqrt|none")
	cmd.Flags().BoolVar(&c.noDefaultScalable, "no-default-scalable", false, "start from an empty scalable param set")
	cmd.Flags().BoolVar(&c.dryRun, "dry-run", false, "display assembled commands without launching")
	cmd.Flags().StringVar(&c.nameSuffix, "name-suffix", "", "suffix appended to every experiment name")
	cmd.Flags().IntVar(&c.nProcesses, "n-processes", 1, "total cooperating orchestrator processes")
	cmd.Flags().IntVar(&c.processID, "process-id", 0, "this orchestrator's zero-based id")
	cmd.Flags().StringArrayVar(&c.srunArgs, "srun-args", nil, "extra srun args; enables cluster submission")
	cmd.Flags().StringVar(&c.logLevel, "log-level", "info", "error|warn|info|debug level and above should be logged")
	cmd.MarkFlagRequired("project")
}

func (c *trainPartitionsCmd) run(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	// Everything after "--" is pass-through training args.
	trainingArgs := []string{}
	positional := args
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		trainingArgs = args[dash:]
		positional = args[:dash]
	}
	if len(positional) < 1 {
		return errors.New("a partition dir must be provided")
	}
	partitionDir := positional[0]

	scalable, extraEpochScalable, err := scaling.ParseParams(scaling.ParamOptions{
		NoDefault:           c.noDefaultScalable,
		ConfigFile:          c.scalableConfig,
		Overrides:           c.scalableParams,
		ExtraEpochOverrides: c.extraEpochScalableParams,
	})
	if err != nil {
		return err
	}

	config := training.Config{
		PartitionDir:             partitionDir,
		ProjectName:              c.projectName,
		MinImages:                c.minImages,
		NProcesses:               c.nProcesses,
		ProcessID:                c.processID,
		DryRun:                   c.dryRun,
		ExtraEpoches:             c.extraEpoches,
		NameSuffix:               c.nameSuffix,
		ScalableParams:           scalable,
		ExtraEpochScalableParams: extraEpochScalable,
		ScaleMode:                scaling.Mode(c.scaleParamMode),
		PartitionIDs:             c.parts,
		TrainingArgs:             trainingArgs,
		SrunArgs:                 c.srunArgs,
		ConfigFile:               c.configFile,
	}

	stat := stats.DefaultStatsReceiver()
	pt, err := training.New(config, training.ColmapVariant{}, osexecer.NewExecer(), stat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcomes, err := pt.TrainPartitions(ctx)
	log.Debugf("Outcomes: %s", render.Render(outcomes))
	for _, o := range outcomes {
		log.Infof("#%d(%s) exit code %d", o.Index, pt.Index().Coordinates[o.Index].ID(), o.ExitCode)
	}
	log.Info(training.Summarize(outcomes).String())
	log.Infof("Stats: %s", stat.Render())
	return err
}
