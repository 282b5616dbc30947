// Command cellseg segments stained microscopy tiles into binary cell
// masks. It walks an input file or directory, runs the selected
// segmenter on every tile concurrently and writes one mask PNG per
// tile to the output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"cellseg/internal/config"
	"cellseg/internal/deconv"
	"cellseg/internal/logger"
	"cellseg/internal/pipeline"
	"cellseg/internal/segmenter"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cellseg:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		inPath     = flag.String("in", "", "input tile file or directory (PNG/JPEG)")
		outDir     = flag.String("out", ".", "output directory for mask PNGs")
		configPath = flag.String("config", "", "YAML configuration file")
		segName    = flag.String("segmenter", "aggregate", "segmenter to run: aggregate or slide")
		workers    = flag.Int("workers", 0, "concurrent tile workers (0 = from config)")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	)
	flag.Parse()

	if *inPath == "" {
		return fmt.Errorf("missing required -in flag")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if *workers > 0 {
		cfg.Runtime.Workers = *workers
	}
	if *logLevel != "" {
		cfg.Runtime.LogLevel = *logLevel
	}

	log := logger.NewConsoleLogger(logger.ParseLevel(cfg.Runtime.LogLevel))

	deconvolver, err := deconv.NewFromRows(cfg.Stain.Matrix)
	if err != nil {
		return fmt.Errorf("stain matrix: %w", err)
	}

	seg, closeSeg, err := buildSegmenter(*segName, deconvolver, cfg, log)
	if err != nil {
		return err
	}
	defer closeSeg()

	paths, err := collectTiles(*inPath)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no tiles found under %s", *inPath)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}

	log.Info("Main", "starting batch segmentation", map[string]interface{}{
		"tiles":     len(paths),
		"segmenter": seg.Name(),
		"workers":   cfg.Runtime.Workers,
		"out_dir":   *outDir,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := pipeline.NewCoordinator(seg, cfg.Runtime.Workers, log)
	results := coordinator.Run(ctx, paths, *outDir)

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			log.Error("Main", r.Err, map[string]interface{}{"tile": r.Path})
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d tiles failed", failures, len(results))
	}

	return nil
}

func buildSegmenter(name string, deconvolver *deconv.Deconvolver, cfg *config.Config, log logger.Logger) (segmenter.Segmenter, func(), error) {
	switch name {
	case "aggregate":
		s := segmenter.NewAggregate(deconvolver,
			cfg.Segmentation.CellMaxArea,
			cfg.Segmentation.CellMinCircularity,
			log)
		return s, s.Close, nil
	case "slide":
		iter := cfg.Segmentation.SlideMorphIterations
		s := segmenter.NewSlide(deconvolver,
			cfg.Segmentation.SlideThreshold,
			[3]int{iter[0], iter[1], iter[2]},
			log)
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown segmenter %q (want aggregate or slide)", name)
	}
}

func collectTiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input path: %w", err)
	}

	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking input directory: %w", err)
	}

	return paths, nil
}
