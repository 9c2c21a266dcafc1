// Package main is the samvolume command: it extends 2D seed segmentations
// of an image stack into a 3D instance segmentation.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Mobinapournemat/micro-sam/internal/models"
	"github.com/Mobinapournemat/micro-sam/pkg/config"
	"github.com/Mobinapournemat/micro-sam/pkg/propagation"
	"github.com/Mobinapournemat/micro-sam/pkg/reconstruction"
	"github.com/Mobinapournemat/micro-sam/pkg/segmenter"
	"github.com/Mobinapournemat/micro-sam/pkg/visualization"
)

const (
	// Flags.
	flagConfig       = "config"
	flagInput        = "input"
	flagSeed         = "seed"
	flagLabels       = "labels"
	flagSeedSlice    = "seed-slice"
	flagOutput       = "output"
	flagWorkers      = "workers"
	flagProjection   = "projection"
	flagIoUThreshold = "iou-threshold"
	flagBoxExtension = "box-extension"
	flagVerbose      = "verbose"
)

func main() {
	app := &cli.App{
		Name:  "samvolume",
		Usage: "propagate 2D object masks through image stacks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				Value:   "samvolume.yaml",
			},
			&cli.BoolFlag{
				Name:    flagVerbose,
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "segment",
				Usage:     "segment every object of a seed label slice through the stack",
				UsageText: "samvolume segment --input <slice-dir> --seed <labels.png> [--seed-slice N]",
				Flags: append(propagationFlags(),
					&cli.StringFlag{Name: flagSeed, Required: true, Usage: "label image of the seed slice"},
					&cli.IntFlag{Name: flagSeedSlice, Value: -1, Usage: "index of the seed slice, -1 for the middle slice"},
				),
				Action: segmentAction,
			},
			{
				Name:      "complete",
				Usage:     "complete a partial label stack by propagating every annotated object",
				UsageText: "samvolume complete --input <slice-dir> --labels <label-dir>",
				Flags: append(propagationFlags(),
					&cli.StringFlag{Name: flagLabels, Required: true, Usage: "directory of partial label slices"},
				),
				Action: completeAction,
			},
			{
				Name:  "init-config",
				Usage: "write a default configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagOutput, Value: "samvolume.yaml", Usage: "configuration `FILE` to write"},
				},
				Action: func(c *cli.Context) error {
					return config.CreateDefaultConfigFile(c.String(flagOutput))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func propagationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagInput, Required: true, Usage: "directory containing the image slices"},
		&cli.StringFlag{Name: flagOutput, Value: "segmentation", Usage: "directory for the label slices"},
		&cli.IntFlag{Name: flagWorkers, Usage: "objects propagated in parallel (default from config)"},
		&cli.StringFlag{Name: flagProjection, Usage: "projection: mask, bounding_box or points"},
		&cli.Float64Flag{Name: flagIoUThreshold, Usage: "IoU needed to continue past the seed range"},
		&cli.Float64Flag{Name: flagBoxExtension, Usage: "box extension, fraction (<1) or pixels (>=1)"},
	}
}

// session holds everything a command needs once config and slices are loaded.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	shape  models.Shape
	recon  *reconstruction.Reconstructor
}

func newSession(c *cli.Context) (*session, error) {
	cfg, err := config.LoadConfig(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	if c.IsSet(flagWorkers) {
		cfg.Processing.NumWorkers = c.Int(flagWorkers)
	}
	if c.IsSet(flagProjection) {
		cfg.Propagation.Projection = propagation.ProjectionMode(c.String(flagProjection))
	}
	if c.IsSet(flagIoUThreshold) {
		cfg.Propagation.IoUThreshold = c.Float64(flagIoUThreshold)
	}
	if c.IsSet(flagBoxExtension) {
		cfg.Propagation.BoxExtension = c.Float64(flagBoxExtension)
	}
	if c.IsSet(flagSeedSlice) {
		cfg.Processing.SeedSlice = c.Int(flagSeedSlice)
	}
	if c.Bool(flagVerbose) {
		cfg.Output.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Output.Verbose)
	if err != nil {
		return nil, err
	}

	slices, err := reconstruction.LoadSlices(c.String(flagInput))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load slices")
	}
	cache, err := segmenter.NewEmbeddingCache(reconstruction.Images(slices), logger)
	if err != nil {
		return nil, err
	}
	if err := cache.Precompute(cfg.Processing.NumWorkers); err != nil {
		return nil, errors.Wrap(err, "failed to compute embeddings")
	}
	logger.Info("loaded stack",
		zap.Int("slices", len(slices)),
		zap.Int("width", cache.Shape().Width),
		zap.Int("height", cache.Shape().Height))

	seg := segmenter.NewIntensitySegmenter(cache, cfg.Segmenter, logger)
	params := &reconstruction.Params{
		Propagation:   cfg.Propagation,
		NumWorkers:    cfg.Processing.NumWorkers,
		MinObjectSize: cfg.Processing.MinObjectSize,
		MaxObjectSize: cfg.Processing.MaxObjectSize,
		MergePolicy:   cfg.Processing.MergePolicy,
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		shape:  cache.Shape(),
		recon:  reconstruction.NewReconstructor(params, seg, cache.Shape(), logger),
	}, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func segmentAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.logger.Sync() //nolint:errcheck

	labels, w, h, err := reconstruction.LoadLabelImage(c.String(flagSeed))
	if err != nil {
		return errors.Wrap(err, "failed to load seed labels")
	}
	if !s.shape.SliceShape(w, h) {
		return errors.Wrapf(models.ErrShapeMismatch, "seed labels %dx%d, slices %dx%d", w, h, s.shape.Width, s.shape.Height)
	}
	z := s.cfg.Processing.SeedSlice
	if z < 0 {
		z = s.shape.Depth / 2
	}
	seed, err := reconstruction.SeedVolume(s.shape, z, labels)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := s.recon.SegmentFromSlice(c.Context, z, seed)
	if err != nil {
		return errors.Wrap(err, "segmentation failed")
	}
	return s.finish(c.String(flagOutput), out, time.Since(start))
}

func completeAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.logger.Sync() //nolint:errcheck

	partial, err := reconstruction.LoadLabelStack(c.String(flagLabels))
	if err != nil {
		return errors.Wrap(err, "failed to load partial labels")
	}

	start := time.Now()
	out, err := s.recon.SegmentVolume(c.Context, partial)
	if err != nil {
		return errors.Wrap(err, "segmentation failed")
	}
	return s.finish(c.String(flagOutput), out, time.Since(start))
}

// finish writes the label volume and prints a summary per object.
func (s *session) finish(outputDir string, out *models.LabelVolume, elapsed time.Duration) error {
	viewer := visualization.NewViewer(out)
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		return errors.Wrap(err, "failed to save label slices")
	}
	if s.cfg.Output.SavePreviews {
		for _, axis := range []string{"x", "y"} {
			axisDir := filepath.Join(s.cfg.Output.PreviewDir, axis)
			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				s.logger.Warn("failed to save preview", zap.String("axis", axis), zap.Error(err))
			}
		}
	}

	fmt.Printf("Segmented %d objects in %.2f seconds, labels saved to %s\n",
		len(s.recon.Stats()), elapsed.Seconds(), outputDir)
	fmt.Printf("%8s %8s %8s %10s %10s\n", "label", "lower", "upper", "voxels", "mean area")
	for _, st := range s.recon.Stats() {
		fmt.Printf("%8d %8d %8d %10d %10.1f\n", st.Label, st.Lower, st.Upper, st.Voxels, st.MeanArea)
	}
	return nil
}
