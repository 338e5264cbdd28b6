// inflatecheck verifies that single-pass inflate performs no window-growth
// allocations. It runs the inflateworker binary under valgrind memcheck
// three times (forced canary, noop baseline, single-pass tested run),
// counts the signature matches in each XML report and compares the counts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/zliballoc/inflatecheck/internal/environment"
	"github.com/zliballoc/inflatecheck/internal/fixture"
	"github.com/zliballoc/inflatecheck/internal/leakscan"
	"github.com/zliballoc/inflatecheck/internal/memcheck"
	"github.com/zliballoc/inflatecheck/internal/verdict"
)

func main() {
	cmd := &cli.Command{
		Name:  "inflatecheck",
		Usage: "verify that single-pass inflate performs no window-growth allocations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelInfo
			if cmd.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.Kitchen,
			})))
			return ctx, nil
		},
		Commands: []*cli.Command{
			runCommand(),
			scanCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the three-run memcheck comparison and report a verdict",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a TOML config file"},
			&cli.StringFlag{Name: "valgrind", Usage: "valgrind executable (default: probe known paths)"},
			&cli.StringFlag{Name: "worker", Usage: "inflateworker executable (default: next to this binary)"},
			&cli.StringFlag{Name: "fixture", Usage: "fixture container with the compressed payload"},
			&cli.StringFlag{Name: "workdir", Usage: "directory for reports and workload output"},
			&cli.StringFlag{Name: "outer-frame", Usage: "outermost symbol of the leak signature"},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := environment.Read(cmd.String("config"))
	if err != nil {
		return err
	}
	if v := cmd.String("valgrind"); v != "" {
		cfg.Valgrind = v
	}
	if v := cmd.String("worker"); v != "" {
		cfg.Worker = v
	}
	if v := cmd.String("fixture"); v != "" {
		cfg.Fixture.Path = v
	}
	if v := cmd.String("workdir"); v != "" {
		cfg.WorkDir = v
	}
	if v := cmd.String("outer-frame"); v != "" {
		cfg.OuterFrame = v
	}

	if cfg.Valgrind == "" {
		cfg.Valgrind, err = memcheck.FindValgrind()
		if err != nil {
			return err
		}
	}
	if cfg.Worker == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate own executable: %w", err)
		}
		cfg.Worker = filepath.Join(filepath.Dir(exe), "inflateworker")
	}
	if _, err := os.Stat(cfg.Worker); err != nil {
		return fmt.Errorf("worker executable not found: %w", err)
	}
	if err := fixture.Validate(cfg.Fixture.Path, cfg.FixtureParams()); err != nil {
		return err
	}
	if cfg.WorkDir == "" {
		// unique per invocation so parallel CI jobs never share reports
		cfg.WorkDir = filepath.Join(os.TempDir(), "inflatecheck-"+uuid.NewString())
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return fmt.Errorf("failed to create work directory %s: %w", cfg.WorkDir, err)
	}
	slog.Debug("effective config",
		"valgrind", cfg.Valgrind, "worker", cfg.Worker,
		"fixture", cfg.Fixture.Path, "workdir", cfg.WorkDir)

	runner := &memcheck.Runner{
		Valgrind: cfg.Valgrind,
		Worker:   cfg.Worker,
		Fixture:  cfg.Fixture.Path,
		Params:   cfg.FixtureParams(),
		WorkDir:  cfg.WorkDir,
	}
	sig := leakscan.DefaultSignature(cfg.OuterFrame)

	v, err := verdict.Check(ctx, runner, func(reportPath string) (int, error) {
		return leakscan.CountFile(reportPath, sig)
	})
	if err != nil {
		return err
	}

	printRuns(v.Runs)
	if !v.Passed {
		color.Red("Test failed: %s", v.Detail)
		os.Exit(1)
	}
	color.Green("Test passed")
	return nil
}

func printRuns(runs []verdict.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Mode", "Leaks", "Exit code", "Report"})
	for _, r := range runs {
		t.AppendRow(table.Row{string(r.Mode), r.LeakCount, r.ExitCode, r.ReportPath})
	}
	t.Render()
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "count signature matches in an existing memcheck XML report",
		ArgsUsage: "<report.xml[.zst|.gz]>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "outer-frame",
				Usage: "outermost symbol of the leak signature",
				Value: leakscan.DefaultOuterFrame,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one report path argument")
			}
			sig := leakscan.DefaultSignature(cmd.String("outer-frame"))
			count, err := leakscan.CountFile(cmd.Args().First(), sig)
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
}
