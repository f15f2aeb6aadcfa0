// Package heartbeat writes the liveness file the supervisor polls. It is
// the daemon side only: it never reads its own file back, and the
// supervisor never writes to it.
package heartbeat

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// shutdownSuffix tags the final write on clean cancellation so the
// supervisor can tell a graceful exit apart from a stale file it must
// treat as a hang.
const shutdownSuffix = "|SHUTDOWN"

// Heartbeat periodically writes the current wall-clock timestamp to
// heartbeatPath, and writes the daemon's PID once to pidPath at Start.
type Heartbeat struct {
	heartbeatPath string
	pidPath       string
	interval      time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New builds a Heartbeat. Nothing is written until Start is called.
func New(heartbeatPath, pidPath string, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		heartbeatPath: heartbeatPath,
		pidPath:       pidPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start writes the PID file, writes the first heartbeat immediately, and
// begins the periodic write loop. It returns once the PID file and first
// heartbeat are written so a caller can rely on both existing by the time
// Start returns.
func (h *Heartbeat) Start(ctx context.Context) error {
	if err := os.WriteFile(h.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := h.write(false); err != nil {
		return fmt.Errorf("write initial heartbeat: %w", err)
	}

	h.wg.Add(1)
	go h.loop(ctx)
	return nil
}

func (h *Heartbeat) loop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = h.write(true)
			return
		case <-h.stopChan:
			_ = h.write(true)
			return
		case <-ticker.C:
			_ = h.write(false)
		}
	}
}

// Stop cancels the write loop and blocks until its final SHUTDOWN-tagged
// write has completed, then removes the heartbeat file: a clean exit leaves
// no heartbeat file behind for the supervisor to find stale.
func (h *Heartbeat) Stop() {
	close(h.stopChan)
	h.wg.Wait()
	_ = os.Remove(h.heartbeatPath)
}

func (h *Heartbeat) write(shutdown bool) error {
	payload := strconv.FormatInt(time.Now().Unix(), 10)
	if shutdown {
		payload += shutdownSuffix
	}
	return os.WriteFile(h.heartbeatPath, []byte(payload), 0o644)
}
