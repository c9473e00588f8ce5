package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-ucf/checkpoints"
	"github.com/tsawler/go-ucf/config"
)

// bucketMirror is a checkpoint mirror that can create its own bucket
type bucketMirror interface {
	checkpoints.Mirror
	EnsureBucket(ctx context.Context) error
}

// app carries what every subcommand needs once the configuration is loaded
type app struct {
	fs  afero.Fs
	cfg *config.Config
	log *logrus.Logger

	newMirror func(cfg checkpoints.MinioConfig) (bucketMirror, error)
}

func (a *app) rand(offset int64) *rand.Rand {
	seed := a.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed + offset))
}

type overrides struct {
	dataRoot  string
	labelFile string
	frameFile string
	recordDir string
	logLevel  string
	workers   int
	batchSize int
	seed      int64
}

func newApp(fs afero.Fs) *app {
	return &app{
		fs: fs,
		newMirror: func(cfg checkpoints.MinioConfig) (bucketMirror, error) {
			return checkpoints.NewMinioMirror(cfg)
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	var o overrides

	root := &cobra.Command{
		Use:   "ucf-check",
		Short: "Check UCF101 frame dumps and training checkpoints",
		Long: `ucf-check reads its settings from UCF_* environment variables; flags
override them.

Example:
  ucf-check verify-train --data-root /data/jpegs_256
  ucf-check verify-test --frames-per-video 19
  ucf-check checkpoint-info record/model_best.pth.tar
  ucf-check push-checkpoint --with-best`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("data-root") {
				cfg.DataRoot = o.dataRoot
			}
			if flags.Changed("labels") {
				cfg.LabelFile = o.labelFile
			}
			if flags.Changed("frame-counts") {
				cfg.FrameCountFile = o.frameFile
			}
			if flags.Changed("record-dir") {
				cfg.RecordDir = o.recordDir
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = o.logLevel
			}
			if flags.Changed("workers") {
				cfg.Workers = o.workers
			}
			if flags.Changed("batch-size") {
				cfg.BatchSize = o.batchSize
			}
			if flags.Changed("seed") {
				cfg.Seed = o.seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a.cfg = cfg
			a.log = cfg.NewLogger()
			a.log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.dataRoot, "data-root", "", "directory holding <Class>/separated_images")
	pf.StringVar(&o.labelFile, "labels", "", "label map file (yaml or json)")
	pf.StringVar(&o.frameFile, "frame-counts", "", "frame count file (yaml or json)")
	pf.StringVar(&o.recordDir, "record-dir", "", "directory for checkpoints and CSV logs")
	pf.StringVar(&o.logLevel, "log-level", "", "logrus level")
	pf.IntVarP(&o.workers, "workers", "j", 0, "loader goroutines")
	pf.IntVarP(&o.batchSize, "batch-size", "b", 0, "samples per batch")
	pf.Int64Var(&o.seed, "seed", 0, "random seed, 0 uses the clock")

	root.AddCommand(
		newVerifyTrainCmd(a),
		newVerifyTestCmd(a),
		newCheckpointInfoCmd(a),
		newPushCheckpointCmd(a),
	)
	return root
}
