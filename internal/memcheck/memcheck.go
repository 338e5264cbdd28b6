// Package memcheck runs the inflate workload under valgrind and captures
// the tool's XML report for one workload mode at a time.
package memcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zliballoc/inflatecheck/internal/fixture"
)

// Mode selects what the workload does with the fixture payload.
type Mode string

const (
	// ModeSinglePass inflates into one exactly-sized output buffer.
	ModeSinglePass Mode = "single-pass"
	// ModeForcedMultipass inflates through an undersized buffer, forcing
	// window-growth allocations. Used as the canary.
	ModeForcedMultipass Mode = "forced-multipass"
	// ModeNoop performs no decompression. Used as the baseline.
	ModeNoop Mode = "noop"
)

var valgrindCandidates = []string{
	"/usr/bin/valgrind",
	"/usr/local/bin/valgrind",
}

// FindValgrind probes the usual install locations and then $PATH.
func FindValgrind() (string, error) {
	for _, candidate := range valgrindCandidates {
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	if path, err := exec.LookPath("valgrind"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("cannot find valgrind executable, tried paths: %s and $PATH",
		strings.Join(valgrindCandidates, ", "))
}

// Runner invokes the workload binary under valgrind. Runs are strictly
// sequential; each run owns its report and output files, keyed by mode.
type Runner struct {
	Valgrind string         // valgrind executable
	Worker   string         // workload executable
	Fixture  string         // container file with the compressed payload
	Params   fixture.Params // handed to the worker via the environment
	WorkDir  string         // where reports and workload output land
}

// Run executes one workload mode under valgrind, blocking until the
// process exits. The workload's combined stdout and stderr are appended to
// inflateworker.<mode>.out next to the report. A non-zero exit from either
// valgrind or the workload is fatal for the run and reported with the mode
// and code.
func (r *Runner) Run(ctx context.Context, mode Mode) (string, int, error) {
	reportPath := filepath.Join(r.WorkDir, fmt.Sprintf("inflateworker.%s.memcheck.xml", mode))
	outPath := filepath.Join(r.WorkDir, fmt.Sprintf("inflateworker.%s.out", mode))

	options := DefaultOptions(reportPath)
	args := append(options.ToArgs(), r.Worker, r.Fixture, string(mode))

	outFile, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open workload output file %s: %w", outPath, err)
	}
	defer outFile.Close()

	cmd := exec.CommandContext(ctx, r.Valgrind, args...)
	cmd.Stdout = outFile
	cmd.Stderr = outFile
	if r.Params != (fixture.Params{}) {
		// zero params mean the worker keeps its built-in defaults
		cmd.Env = append(os.Environ(), r.Params.Env()...)
	}

	slog.Info("starting workload under memcheck", "mode", mode, "report", reportPath)
	slog.Debug("valgrind invocation", "args", cmd.Args)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			return reportPath, code, fmt.Errorf("mode %s: subprocess returned code %d, check %s", mode, code, outPath)
		}
		return reportPath, 0, fmt.Errorf("mode %s: failed to run valgrind: %w", mode, err)
	}

	slog.Info("workload finished", "mode", mode)
	return reportPath, 0, nil
}
