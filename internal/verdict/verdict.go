// Package verdict implements the three-run comparison protocol: a forced
// canary run proves the scanner can see the signature at all, then the
// no-op baseline and single-pass tested runs must report the same count.
package verdict

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zliballoc/inflatecheck/internal/memcheck"
)

// Runner abstracts one workload invocation under the instrumentation tool.
// Implemented by memcheck.Runner.
type Runner interface {
	Run(ctx context.Context, mode memcheck.Mode) (reportPath string, exitCode int, err error)
}

// ScanFunc counts signature matches in one report file.
type ScanFunc func(reportPath string) (int, error)

// RunResult records one completed run. Immutable once built.
type RunResult struct {
	Mode       memcheck.Mode
	ReportPath string
	LeakCount  int
	ExitCode   int
}

// Reason classifies why a verdict passed or failed.
type Reason int

const (
	// ReasonPassed means the tested count matched the baseline.
	ReasonPassed Reason = iota
	// ReasonCanaryNotFired means the forced run reported zero matches,
	// which indicts the scanner or signature, not the code under test.
	ReasonCanaryNotFired
	// ReasonLeakDelta means the tested count differed from the baseline.
	ReasonLeakDelta
)

// Verdict is the terminal outcome of the three-run sequence.
type Verdict struct {
	Passed bool
	Reason Reason
	Detail string
	Runs   []RunResult
}

// Check runs the three modes in order forced-multipass, noop, single-pass
// and compares the counts. The forced run goes first so a broken canary is
// reported before time is spent on the others; a zero canary count
// short-circuits the sequence. Execution or scan failures abort with an
// error instead of a verdict.
func Check(ctx context.Context, runner Runner, scan ScanFunc) (*Verdict, error) {
	forced, err := runOne(ctx, runner, scan, memcheck.ModeForcedMultipass)
	if err != nil {
		return nil, err
	}
	if forced.LeakCount == 0 {
		return &Verdict{
			Passed: false,
			Reason: ReasonCanaryNotFired,
			Detail: fmt.Sprintf("canary did not fire: forced-multipass run reported no signature matches, check %s", forced.ReportPath),
			Runs:   []RunResult{*forced},
		}, nil
	}
	slog.Info("canary fired", "leaks", forced.LeakCount)

	baseline, err := runOne(ctx, runner, scan, memcheck.ModeNoop)
	if err != nil {
		return nil, err
	}
	tested, err := runOne(ctx, runner, scan, memcheck.ModeSinglePass)
	if err != nil {
		return nil, err
	}

	runs := []RunResult{*forced, *baseline, *tested}
	if tested.LeakCount != baseline.LeakCount {
		return &Verdict{
			Passed: false,
			Reason: ReasonLeakDelta,
			Detail: fmt.Sprintf("noop leak count: %d, single-pass leak count: %d", baseline.LeakCount, tested.LeakCount),
			Runs:   runs,
		}, nil
	}
	return &Verdict{
		Passed: true,
		Reason: ReasonPassed,
		Detail: fmt.Sprintf("single-pass leak count matches noop baseline: %d", baseline.LeakCount),
		Runs:   runs,
	}, nil
}

func runOne(ctx context.Context, runner Runner, scan ScanFunc, mode memcheck.Mode) (*RunResult, error) {
	reportPath, exitCode, err := runner.Run(ctx, mode)
	if err != nil {
		return nil, err
	}
	count, err := scan(reportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s report: %w", mode, err)
	}
	slog.Info("scanned report", "mode", mode, "leaks", count)
	return &RunResult{
		Mode:       mode,
		ReportPath: reportPath,
		LeakCount:  count,
		ExitCode:   exitCode,
	}, nil
}
