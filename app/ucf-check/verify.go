package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-ucf/training"
	"github.com/tsawler/go-ucf/vision/dataloader"
	"github.com/tsawler/go-ucf/vision/dataset"
	"github.com/tsawler/go-ucf/vision/preprocessing"
)

// passStats summarizes one pass of a loader
type passStats struct {
	Samples    int
	Batches    int
	Videos     int
	Classes    int
	SampleSize int
	DataTime   float64
}

func newVerifyTrainCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "verify-train",
		Short: "Load one epoch of random training frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			labels, frames, err := a.loadMappings()
			if err != nil {
				return err
			}

			pipeline := preprocessing.NewPipeline(
				preprocessing.WithHorizontalFlip(0.5),
				preprocessing.WithNormalize(preprocessing.ImageNetMean, preprocessing.ImageNetStd),
				preprocessing.WithPipelineRand(a.rand(1)),
			)
			ds, err := dataset.NewTrainingFrameDataset(a.fs, a.cfg.DataRoot, labels, frames,
				dataset.WithRand(a.rand(0)),
				dataset.WithTransform(pipeline),
				dataset.WithImageSize(a.cfg.ImageSize),
			)
			if err != nil {
				return err
			}

			loader := dataloader.NewDataLoader(ds, dataloader.Config{
				BatchSize:  a.cfg.BatchSize,
				Shuffle:    true,
				NumWorkers: a.cfg.Workers,
				Rand:       a.rand(2),
			})
			stats, err := a.drain(cmd, loader, "train", limit)
			if err != nil {
				return err
			}
			a.report(cmd, "train", stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many batches, 0 reads the whole epoch")
	return cmd
}

func newVerifyTestCmd(a *app) *cobra.Command {
	var (
		limit          int
		framesPerVideo int
		listFile       string
		cacheSize      int
	)

	cmd := &cobra.Command{
		Use:   "verify-test",
		Short: "Load every listed test frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("list") {
				a.cfg.TestListFile = listFile
			}
			if cmd.Flags().Changed("frames-per-video") {
				a.cfg.FramesPerVideo = framesPerVideo
			}

			entries, err := a.testEntries()
			if err != nil {
				return err
			}

			pipeline := preprocessing.NewPipeline(
				preprocessing.WithNormalize(preprocessing.ImageNetMean, preprocessing.ImageNetStd),
			)
			ds := dataset.NewTestingFrameDataset(a.fs, a.cfg.DataRoot, entries, pipeline,
				dataset.WithTestingImageSize(a.cfg.ImageSize),
			)
			loader := dataloader.NewDataLoader(ds, dataloader.Config{
				BatchSize:    a.cfg.BatchSize,
				NumWorkers:   a.cfg.Workers,
				MaxCacheSize: cacheSize,
			})

			stats, err := a.drain(cmd, loader, "test", limit)
			if err != nil {
				return err
			}
			a.report(cmd, "test", stats)
			if cacheSize > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), loader.Stats().String())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many batches, 0 reads every entry")
	cmd.Flags().IntVar(&framesPerVideo, "frames-per-video", 0, "frames sampled per video when no list is given")
	cmd.Flags().StringVar(&listFile, "list", "", "test list file, built from the mappings when empty")
	cmd.Flags().IntVar(&cacheSize, "cache", 0, "decoded samples kept in memory")
	return cmd
}

func (a *app) loadMappings() (dataset.LabelMap, dataset.FrameCountMap, error) {
	labels, err := dataset.LoadLabelMap(a.fs, a.cfg.LabelFile)
	if err != nil {
		return nil, nil, err
	}
	frames, err := dataset.LoadFrameCountMap(a.fs, a.cfg.FrameCountFile)
	if err != nil {
		return nil, nil, err
	}
	a.log.WithFields(logrus.Fields{
		"videos": len(labels),
		"counts": len(frames),
	}).Debug("mappings loaded")
	return labels, frames, nil
}

func (a *app) testEntries() ([]string, error) {
	if a.cfg.TestListFile != "" {
		return dataset.LoadTestList(a.fs, a.cfg.TestListFile)
	}
	labels, frames, err := a.loadMappings()
	if err != nil {
		return nil, err
	}
	return dataset.BuildTestList(labels, frames, a.cfg.FramesPerVideo)
}

// drain reads batches until the epoch ends, ctx is canceled or limit batches were read
func (a *app) drain(cmd *cobra.Command, loader *dataloader.DataLoader, desc string, limit int) (passStats, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	total := loader.Len()
	if limit > 0 && limit < total {
		total = limit
	}
	bar := training.NewProgressBarWriter(cmd.OutOrStdout(), desc, total)
	dataTime := training.NewAverageMeter()
	videos := make(map[string]struct{})
	classes := make(map[int32]struct{})

	var stats passStats
	for limit <= 0 || stats.Batches < limit {
		start := time.Now()
		batch, err := loader.NextBatch(ctx)
		if err != nil {
			return stats, err
		}
		if batch == nil {
			break
		}
		dataTime.Update(time.Since(start).Seconds(), 1)

		stats.Batches++
		stats.Samples += batch.Size
		stats.SampleSize = len(batch.Images) / batch.Size
		for i := 0; i < batch.Size; i++ {
			videos[batch.Videos[i]] = struct{}{}
			classes[batch.Labels[i]] = struct{}{}
		}
		bar.Update(stats.Batches, map[string]float64{"data": dataTime.Avg})
	}
	bar.Finish()

	stats.Videos = len(videos)
	stats.Classes = len(classes)
	stats.DataTime = dataTime.Avg
	return stats, nil
}

func (a *app) report(cmd *cobra.Command, mode string, stats passStats) {
	a.log.WithFields(logrus.Fields{
		"mode":    mode,
		"batches": stats.Batches,
		"samples": stats.Samples,
	}).Info("pass complete")
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d samples in %d batches, %d videos, %d classes, data %.3fs/batch, %d values/sample\n",
		mode, stats.Samples, stats.Batches, stats.Videos, stats.Classes, stats.DataTime, stats.SampleSize)
}
