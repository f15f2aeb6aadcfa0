// Package supervisor is the watchdog process: it spawns the daemon as a
// child process, watches its exit and heartbeat freshness, and restarts it
// with exponential backoff on failure.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/riverrun/depwatch/internal/logfields"
	"github.com/riverrun/depwatch/internal/metrics"
	"github.com/riverrun/depwatch/internal/retry"
	"github.com/riverrun/depwatch/internal/store"
)

// Restart reasons, the closed set a RestartEvent's Reason field can hold.
const (
	ReasonStart          = "start"
	ReasonExitNonzero    = "exit_nonzero"
	ReasonHeartbeatStale = "heartbeat_stale"
	ReasonStartFailed    = "start_failed"
)

// ErrMaxRestartsExceeded is returned from Run when MaxRestarts is
// configured (nonzero) and reached; the supervisor stops respawning rather
// than honoring an unbounded restart-crash loop.
var ErrMaxRestartsExceeded = errors.New("maximum restart attempts exceeded")

// Config configures one Supervisor run.
type Config struct {
	HeartbeatPath string
	CheckInterval time.Duration
	// MaxRestarts caps total restarts; 0 means unlimited.
	MaxRestarts int
	Backoff     retry.Policy
}

// Supervisor owns one daemon child's full lifecycle.
type Supervisor struct {
	spawner  Spawner
	store    store.Store
	cfg      Config
	now      func() time.Time
	recorder metrics.Recorder

	// lastReason, lastExitCode and lastLogExcerpt carry the previous
	// iteration's child's exit details into the next iteration's
	// restart-event record.
	lastReason     string
	lastExitCode   int
	lastLogExcerpt string
}

// New builds a Supervisor. cfg.Backoff defaults to
// retry.SupervisorBackoffPolicy() if the zero value is passed.
func New(spawner Spawner, st store.Store, cfg Config) *Supervisor {
	if cfg.Backoff == (retry.Policy{}) {
		cfg.Backoff = retry.SupervisorBackoffPolicy()
	}
	return &Supervisor{spawner: spawner, store: st, cfg: cfg, now: time.Now, recorder: metrics.NoopRecorder{}}
}

// SetRecorder overrides the default no-op metrics recorder.
func (s *Supervisor) SetRecorder(r metrics.Recorder) { s.recorder = r }

// Run supervises the daemon until ctx is canceled (graceful shutdown,
// returning nil) or MaxRestarts is exceeded (returning
// ErrMaxRestartsExceeded). A spawn or liveness failure never terminates
// Run; it always leads to another attempt, after backoff.
func (s *Supervisor) Run(ctx context.Context) error {
	state, err := s.store.ReadWatchdogState(ctx)
	if err != nil {
		return fmt.Errorf("read watchdog state: %w", err)
	}
	restartCount := state.RestartCount

	for {
		if ctx.Err() != nil {
			return nil
		}

		if s.cfg.MaxRestarts > 0 && restartCount >= s.cfg.MaxRestarts {
			return ErrMaxRestartsExceeded
		}

		if restartCount > 0 {
			delay := s.cfg.Backoff.Delay(restartCount)
			slog.Info("backing off before restart", logfields.RestartCount(restartCount), logfields.DurationMS(float64(delay.Milliseconds())))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}

		reason := ReasonStart
		exitCode := 0
		logExcerpt := ""
		if restartCount > 0 {
			reason = s.lastReason
			exitCode = s.lastExitCode
			logExcerpt = s.lastLogExcerpt
		}
		if err := s.recordRestart(ctx, restartCount, reason, exitCode, logExcerpt); err != nil {
			slog.Error("failed to record restart event", logfields.Error(err))
		}

		child, spawnErr := s.spawner.Spawn(ctx)
		if spawnErr != nil {
			slog.Error("failed to spawn daemon", logfields.Error(spawnErr))
			s.lastReason = ReasonStartFailed
			s.lastExitCode = 0
			s.lastLogExcerpt = ""
			restartCount++
			continue
		}
		slog.Info("daemon spawned", logfields.PID(child.Pid()))
		spawnedAt := s.now()

		exitReason, exitCode, logExcerpt, exited := s.supervise(ctx, child, spawnedAt)
		if !exited {
			// ctx was canceled: graceful shutdown, not a restart.
			return nil
		}
		s.lastReason = exitReason
		s.lastExitCode = exitCode
		s.lastLogExcerpt = logExcerpt
		restartCount++
	}
}

// supervise blocks until the child exits on its own, is killed for a stale
// heartbeat, or ctx is canceled. It returns exited=false only for the
// graceful-shutdown path.
func (s *Supervisor) supervise(ctx context.Context, child Child, spawnedAt time.Time) (reason string, exitCode int, logExcerpt string, exited bool) {
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	staleThreshold := 3 * s.cfg.CheckInterval
	startupGrace := staleThreshold

	for {
		select {
		case <-ctx.Done():
			s.terminateGracefully(child)
			return "", 0, "", false

		case code := <-child.ExitCode():
			slog.Warn("daemon exited", logfields.ExitCode(code))
			return ReasonExitNonzero, code, child.LogExcerpt(), true

		case <-ticker.C:
			if s.now().Sub(spawnedAt) < startupGrace {
				continue
			}
			stale, err := s.heartbeatStale(staleThreshold)
			if err != nil {
				slog.Warn("could not stat heartbeat file", logfields.Error(err))
				continue
			}
			if !stale {
				continue
			}
			slog.Warn("heartbeat stale, killing daemon", logfields.PID(child.Pid()))
			code := s.killWithGrace(child)
			return ReasonHeartbeatStale, code, child.LogExcerpt(), true
		}
	}
}

// heartbeatStale reports whether the heartbeat file's mtime is older than
// threshold. A missing file is not stale -- it means the daemon hasn't
// written one yet, which startupGrace already accounts for.
func (s *Supervisor) heartbeatStale(threshold time.Duration) (bool, error) {
	info, err := os.Stat(s.cfg.HeartbeatPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.now().Sub(info.ModTime()) > threshold, nil
}

// killWithGrace sends SIGTERM and escalates to SIGKILL if the child hasn't
// exited within forceKillGrace, returning the exit code the child delivers.
func (s *Supervisor) killWithGrace(child Child) int {
	_ = child.Terminate()
	select {
	case code := <-child.ExitCode():
		return code
	case <-time.After(forceKillGrace):
		_ = child.ForceKill()
		return <-child.ExitCode()
	}
}

// terminateGracefully is killWithGrace's counterpart for a supervisor-level
// cancellation rather than a detected failure; same grace window. The exit
// code is discarded since a graceful shutdown never records a restart.
func (s *Supervisor) terminateGracefully(child Child) {
	s.killWithGrace(child)
}

func (s *Supervisor) recordRestart(ctx context.Context, restartCount int, reason string, exitCode int, logExcerpt string) error {
	now := s.now()
	event := store.RestartEvent{RestartCount: restartCount, Reason: reason, ExitCode: exitCode, LogExcerpt: logExcerpt, OccurredAt: now}
	if err := s.store.AppendRestartEvent(ctx, event); err != nil {
		return err
	}
	s.recorder.IncRestart(reason)
	s.recorder.SetRestartCount(restartCount)
	return s.store.WriteWatchdogState(ctx, store.WatchdogState{RestartCount: restartCount, LastRestartTime: now})
}
