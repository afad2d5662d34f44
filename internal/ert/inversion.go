package ert

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var nanValue = math.NaN()

// InversionProcessor delegates to an external inversion program invoked as
// `<command> <input> <model.csv>`. The program writes the solved model grid as
// comma-separated rows (depth index by distance index).
type InversionProcessor struct {
	Command string
	Timeout time.Duration
}

// Probe resolves command on PATH. It is the startup capability check that
// decides whether the inversion path is offered at all.
func Probe(command string, timeoutSec int) (*InversionProcessor, bool) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, false
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, false
	}
	if timeoutSec <= 0 {
		timeoutSec = 300
	}
	return &InversionProcessor{Command: path, Timeout: time.Duration(timeoutSec) * time.Second}, true
}

func (p *InversionProcessor) Name() string { return "inversion" }

func (p *InversionProcessor) Process(ctx context.Context, inputPath, outDir string) Result {
	if _, err := os.Stat(inputPath); err != nil {
		return failed(p.Name(), "stat input", err)
	}
	work, err := os.MkdirTemp("", "bhea-inversion-*")
	if err != nil {
		return failed(p.Name(), "workdir", err)
	}
	defer os.RemoveAll(work)
	solved := filepath.Join(work, "model.csv")

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, p.Command, inputPath, solved)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, truncate(msg, 300))
		}
		return failed(p.Name(), "run", err)
	}

	g, err := readModelGrid(solved)
	if err != nil {
		return failed(p.Name(), "read model", err)
	}
	g.Provenance = ProvenanceInverted
	g.Source = filepath.Base(inputPath)
	art, err := writeArtifacts(g, outDir)
	if err != nil {
		return failed(p.Name(), "render", err)
	}
	return Result{Artifact: art}
}

// readModelGrid parses rows of comma-separated numbers; "nan" and empty
// cells are NaN. Ragged rows are padded with NaN.
func readModelGrid(path string) (*Grid, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if len(rows) == 0 || cols == 0 {
		return nil, errors.New("inversion produced an empty model")
	}
	g := NewGrid(len(rows), cols, ProvenanceInverted)
	for i, row := range rows {
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil || math.IsInf(v, 0) {
				continue
			}
			g.Values.Set(i, j, v)
		}
	}
	return g, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
