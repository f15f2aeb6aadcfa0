package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/riverrun/depwatch/internal/config"
	"github.com/riverrun/depwatch/internal/daemon"
	"github.com/riverrun/depwatch/internal/logging"
	"github.com/riverrun/depwatch/internal/metrics"
	"github.com/riverrun/depwatch/internal/retry"
	"github.com/riverrun/depwatch/internal/store"
	"github.com/riverrun/depwatch/internal/supervisor"
)

// Set at build time with: -ldflags "-X main.version=1.0.0"
var version = "dev"

// CLI is the root command: a stable `run` subcommand plus the ambient ops
// helper `metrics-dump`.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"depwatch.json"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run         RunCmd         `cmd:"" default:"1" help:"Start the supervisor in the foreground (the only stable entrypoint)"`
	MetricsDump MetricsDumpCmd `cmd:"" help:"Print current metrics in Prometheus text format and exit"`

	// worker is the supervisor's own re-exec of this binary to run the
	// daemon loop as a separate process; not part of the documented CLI
	// surface, so it carries no help text.
	Worker WorkerCmd `cmd:"" hidden:""`
}

// RunCmd starts the supervisor, which spawns and watches the daemon as a
// child process for the life of the foreground run.
type RunCmd struct{}

// WorkerCmd runs the daemon loop in the current process. The supervisor
// spawns this as a subprocess of the depwatch binary; it is never meant to
// be invoked directly by an operator.
type WorkerCmd struct{}

// MetricsDumpCmd starts nothing: it just prints a zero-valued metrics
// snapshot, since there is no running daemon to scrape in a one-shot CLI
// invocation. Its value is in exercising the same Prometheus registry and
// text-exposition path the daemon builds, as a quick local sanity check.
type MetricsDumpCmd struct{}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath, err := filepath.Abs(cli.Config)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runDir := filepath.Dir(configPath)
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	st, err := store.Open(ctx, filepath.Join(runDir, "depwatch.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sv := supervisor.New(
		supervisor.ExecSpawner{
			Command:    exe,
			Args:       []string{"worker", "--config", configPath},
			Dir:        runDir,
			Env:        os.Environ(),
			StdoutPath: filepath.Join(runDir, "worker.stdout.log"),
			StderrPath: filepath.Join(runDir, "worker.stderr.log"),
		},
		st,
		supervisor.Config{
			HeartbeatPath: filepath.Join(runDir, "heartbeat"),
			CheckInterval: secondsToDuration(cfg.Watchdog.CheckIntervalSeconds, 10),
			Backoff:       retry.SupervisorBackoffPolicy(),
		},
	)

	slog.Info("supervisor starting", "config", configPath, "worker", exe)
	return sv.Run(ctx)
}

func (c *WorkerCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath, err := filepath.Abs(cli.Config)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	runDir := filepath.Dir(configPath)

	logHandler, closeLogs, err := logging.New(filepath.Join(runDir, "service.log"), filepath.Join(runDir, "service_error.log"))
	if err != nil {
		return fmt.Errorf("open log files: %w", err)
	}
	defer closeLogs()
	slog.SetDefault(slog.New(logHandler))

	paths := daemon.Paths{
		ConfigPath:    configPath,
		StorePath:     filepath.Join(runDir, "depwatch.db"),
		HeartbeatPath: filepath.Join(runDir, "heartbeat"),
		PIDPath:       filepath.Join(runDir, "depwatch.pid"),
	}

	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	d, err := daemon.New(ctx, paths, recorder)
	if err != nil {
		return fmt.Errorf("build daemon: %w", err)
	}
	return d.Run(ctx)
}

func (c *MetricsDumpCmd) Run(cli *CLI) error {
	reg := prom.NewRegistry()
	_ = metrics.NewPrometheusRecorder(reg)
	return metrics.DumpText(reg, os.Stdout)
}

func secondsToDuration(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

func main() {
	cli := &CLI{}
	parser := kong.Parse(cli,
		kong.Description("depwatch: a continuous dependency-reconciliation daemon for Python, Node, and Rust workspaces."),
		kong.Vars{"version": version},
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := parser.Run(cli); err != nil {
		slog.Error("depwatch exiting", "error", err)
		os.Exit(1)
	}
}
