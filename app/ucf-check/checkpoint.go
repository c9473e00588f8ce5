package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-ucf/checkpoints"
)

func newCheckpointInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint-info [path]",
		Short: "Print the contents of a checkpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.CheckpointPath()
			if len(args) == 1 {
				path = args[0]
			}

			cp, err := checkpoints.Load(a.fs, path)
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(cp.State.Model))
			for k := range cp.State.Model {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path:       %s\n", path)
			fmt.Fprintf(out, "run:        %s\n", cp.Metadata.RunID)
			fmt.Fprintf(out, "created:    %s\n", cp.Metadata.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "arch:       %s\n", cp.State.Arch)
			fmt.Fprintf(out, "epoch:      %d\n", cp.State.Epoch)
			fmt.Fprintf(out, "best prec1: %.3f\n", cp.State.BestPrec1)
			fmt.Fprintf(out, "tensors:    %d\n", len(keys))
			for _, k := range keys {
				fmt.Fprintf(out, "  %s\n", k)
			}
			return nil
		},
	}
}

func newPushCheckpointCmd(a *app) *cobra.Command {
	var withBest bool

	cmd := &cobra.Command{
		Use:   "push-checkpoint [path]",
		Short: "Upload a checkpoint to the configured MinIO bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.CheckpointPath()
			if len(args) == 1 {
				path = args[0]
			}
			paths := []string{path}
			if withBest {
				paths = append(paths, checkpoints.BestPath(path))
			}

			mirror, err := a.newMirror(a.cfg.Mirror())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			if err := mirror.EnsureBucket(ctx); err != nil {
				return err
			}

			for _, p := range paths {
				size, err := pushFile(ctx, a.fs, mirror, p)
				if err != nil {
					return err
				}
				a.log.WithFields(logrus.Fields{
					"file":   p,
					"bucket": a.cfg.MinIOBucket,
					"bytes":  size,
				}).Info("checkpoint uploaded")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withBest, "with-best", false, "also upload "+checkpoints.BestFileName)
	return cmd
}

// pushFile uploads path under its base name and returns the number of bytes sent
func pushFile(ctx context.Context, fs afero.Fs, m checkpoints.Mirror, path string) (int64, error) {
	file, err := fs.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to stat %s", path)
	}
	if err := m.Upload(ctx, filepath.Base(path), file, info.Size()); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
