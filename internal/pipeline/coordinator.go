package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"cellseg/internal/logger"
	"cellseg/internal/segmenter"
)

// Coordinator fans tile paths out to a bounded worker pool. Each worker
// loads, segments and saves independently; the only shared objects are
// the stateless segmenter and the loggers.
type Coordinator struct {
	loader    *Loader
	processor *Processor
	saver     *Saver
	workers   int
	log       logger.Logger
}

// Result reports the outcome for one tile.
type Result struct {
	Path string
	Err  error
}

func NewCoordinator(seg segmenter.Segmenter, workers int, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewNop()
	}
	if workers < 1 {
		workers = 1
	}

	return &Coordinator{
		loader:    NewLoader(log),
		processor: NewProcessor(seg, log),
		saver:     NewSaver(log),
		workers:   workers,
		log:       log,
	}
}

// Run segments every tile in paths, writing each result mask to outDir
// as <basename>_mask.png. It returns per-tile results in no particular
// order. Cancellation via ctx stops dispatch between tiles; tiles in
// flight finish.
func (c *Coordinator) Run(ctx context.Context, paths []string, outDir string) []Result {
	jobs := make(chan string)
	results := make(chan Result, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- Result{Path: path, Err: c.processOne(path, outDir)}
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, path := range paths {
		select {
		case <-ctx.Done():
			c.log.Warning("Coordinator", "dispatch cancelled", map[string]interface{}{
				"dispatched": dispatched,
				"total":      len(paths),
			})
			break dispatch
		case jobs <- path:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	collected := make([]Result, 0, dispatched)
	for r := range results {
		collected = append(collected, r)
	}

	failures := 0
	for _, r := range collected {
		if r.Err != nil {
			failures++
		}
	}
	c.log.Info("Coordinator", "batch finished", map[string]interface{}{
		"tiles":    dispatched,
		"failures": failures,
		"workers":  c.workers,
	})

	return collected
}

func (c *Coordinator) processOne(path, outDir string) error {
	tile, err := c.loader.LoadTile(path)
	if err != nil {
		return err
	}
	defer tile.Close()

	mask, err := c.processor.Process(tile)
	if err != nil {
		return err
	}
	defer mask.Close()

	return c.saver.SaveMask(MaskPath(outDir, path), mask.Mat)
}

// MaskPath derives the output mask path for a tile path.
func MaskPath(outDir, tilePath string) string {
	base := filepath.Base(tilePath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(outDir, fmt.Sprintf("%s_mask.png", name))
}
