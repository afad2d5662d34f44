package ert

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/yangatekane/bh-ea-dashboard/internal/logger"
)

// Output file names written into the output directory.
const (
	ImageName    = "ert_result.png"
	ModelName    = "ert_model.csv"
	MetadataName = "ert_model.json"
)

// Artifact is a successfully produced raster.
type Artifact struct {
	ImagePath    string
	ModelPath    string
	MetadataPath string
	Provenance   Provenance
	Rows, Cols   int
}

// ProcessingFailure explains why a processor produced nothing. It triggers
// the fallback path and is logged, never shown as an error page.
type ProcessingFailure struct {
	Processor string
	Stage     string
	Err       error
}

func (f *ProcessingFailure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Processor, f.Stage, f.Err)
}

func (f *ProcessingFailure) Unwrap() error { return f.Err }

// Result holds exactly one of Artifact or Failure.
type Result struct {
	Artifact *Artifact
	Failure  *ProcessingFailure
}

// OK reports whether an artifact was produced.
func (r Result) OK() bool { return r.Artifact != nil && r.Failure == nil }

func failed(proc, stage string, err error) Result {
	return Result{Failure: &ProcessingFailure{Processor: proc, Stage: stage, Err: err}}
}

// RasterProcessor converts a sounding file into a rendered grid in outDir.
type RasterProcessor interface {
	Name() string
	Process(ctx context.Context, inputPath, outDir string) Result
}

// Chain runs Primary and, when it fails, Fallback. A nil Primary goes
// straight to Fallback.
type Chain struct {
	Primary  RasterProcessor
	Fallback RasterProcessor
	Log      *logger.Logger
}

func (c *Chain) Name() string {
	if c.Primary == nil {
		return c.Fallback.Name()
	}
	return c.Primary.Name() + "+" + c.Fallback.Name()
}

func (c *Chain) Process(ctx context.Context, inputPath, outDir string) Result {
	log := c.Log
	if log == nil {
		log = logger.Nop()
	}
	if c.Primary != nil {
		res := c.Primary.Process(ctx, inputPath, outDir)
		if res.OK() {
			return res
		}
		log.Warn("ERT primary processor failed, using fallback",
			"processor", c.Primary.Name(), "input", filepath.Base(inputPath), "error", res.Failure)
	}
	res := c.Fallback.Process(ctx, inputPath, outDir)
	if !res.OK() {
		log.Warn("ERT fallback processor failed",
			"processor", c.Fallback.Name(), "input", filepath.Base(inputPath), "error", res.Failure)
	}
	return res
}

// New selects processors once at startup: the external inversion program
// when Probe finds it, with the built-in fallback behind it.
func New(inversionCommand string, timeoutSec int, log *logger.Logger) RasterProcessor {
	if log == nil {
		log = logger.Nop()
	}
	fallback := &SyntheticFallbackProcessor{}
	inv, ok := Probe(inversionCommand, timeoutSec)
	if !ok {
		if inversionCommand != "" {
			log.Warn("ERT inversion command not found, fallback renderer only", "command", inversionCommand)
		}
		return &Chain{Fallback: fallback, Log: log}
	}
	log.Info("ERT inversion available", "command", inv.Command)
	return &Chain{Primary: inv, Fallback: fallback, Log: log}
}

// Process is the request boundary: it never panics and reports absent paths
// with ok == false when no artifact could be produced.
func Process(ctx context.Context, p RasterProcessor, inputPath, outDir string) (art *Artifact, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			art, ok = nil, false
		}
	}()
	res := p.Process(ctx, inputPath, outDir)
	if !res.OK() {
		return nil, false
	}
	return res.Artifact, true
}
