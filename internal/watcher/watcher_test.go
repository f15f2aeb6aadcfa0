package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/riverrun/depwatch/internal/ecosystem"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ctx context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func waitForEvents(t *testing.T, c *collector, n int, timeout time.Duration) []Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(c.snapshot()) >= n {
			return c.snapshot()
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least %d events, got %d: %+v", n, len(c.snapshot()), c.snapshot())
	return nil
}

func TestFileWatcherDetectsNewManifest(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	w := New(root, nil, nil, 10*time.Millisecond, 30*time.Millisecond, c.handle)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "requirements.txt"), []byte("requests==2.31.0\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	events := waitForEvents(t, c, 1, time.Second)
	if events[0].Ecosystem != ecosystem.Python {
		t.Fatalf("expected python ecosystem, got %v", events[0].Ecosystem)
	}
	if events[0].Kind != EventCreated {
		t.Fatalf("expected created event, got %v", events[0].Kind)
	}
}

func TestFileWatcherCollapsesRapidEdits(t *testing.T) {
	root := t.TempDir()
	manifest := filepath.Join(root, "package.json")
	if err := os.WriteFile(manifest, []byte(`{"dependencies":{}}`), 0o644); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	c := &collector{}
	w := New(root, nil, nil, 10*time.Millisecond, 60*time.Millisecond, c.handle)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	// Let the initial scan record the seeded file as known before editing,
	// so the edits below are observed as a single debounce window of
	// "modified" events rather than racing the first "created" delivery.
	time.Sleep(30 * time.Millisecond)

	for i := 0; i < 5; i++ {
		content := []byte(`{"dependencies":{"lodash":"^4.17.` + string(rune('0'+i)) + `"}}`)
		if err := os.WriteFile(manifest, content, 0o644); err != nil {
			t.Fatalf("rewrite manifest: %v", err)
		}
		time.Sleep(15 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	events := c.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 delivered event for a rapid edit burst, got %d: %+v", len(events), events)
	}
	if events[0].Kind != EventModified {
		t.Fatalf("expected modified event, got %v", events[0].Kind)
	}
}

func TestFileWatcherDetectsRemoval(t *testing.T) {
	root := t.TempDir()
	manifest := filepath.Join(root, "Cargo.toml")
	if err := os.WriteFile(manifest, []byte("[dependencies]\n"), 0o644); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	c := &collector{}
	w := New(root, nil, nil, 10*time.Millisecond, 30*time.Millisecond, c.handle)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	waitForEvents(t, c, 1, time.Second) // initial "created" from the seeded file

	if err := os.Remove(manifest); err != nil {
		t.Fatalf("remove manifest: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		events := c.snapshot()
		if len(events) >= 2 && events[len(events)-1].Kind == EventRemoved {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected a removed event, got %+v", c.snapshot())
}

// TestFireUpgradesStaleRemovalToModified exercises fire() directly: a
// removal scheduled during the debounce window can race a recreate of the
// same path before the timer fires. fire() must re-verify against the
// filesystem rather than deliver the stale EventRemoved it was scheduled
// with.
func TestFireUpgradesStaleRemovalToModified(t *testing.T) {
	root := t.TempDir()
	manifest := filepath.Join(root, "Cargo.toml")

	c := &collector{}
	w := New(root, nil, nil, time.Hour, time.Hour, c.handle)

	// The path was removed (per the scan that scheduled this fire), but by
	// fire time someone has recreated it -- simulate that race directly.
	if err := os.WriteFile(manifest, []byte("[dependencies]\nserde = \"1\"\n"), 0o644); err != nil {
		t.Fatalf("recreate manifest: %v", err)
	}

	w.fire(t.Context(), manifest, ecosystem.Rust, EventRemoved)

	events := c.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 delivered event, got %d: %+v", len(events), events)
	}
	if events[0].Kind != EventModified {
		t.Fatalf("expected stale removal to upgrade to modified, got %v", events[0].Kind)
	}
}

func TestGlobSetExcludeWinsOverInclude(t *testing.T) {
	g := newGlobSet([]string{"**/requirements.txt"}, []string{"**/vendor/**"})
	if g.matches("/root", "/root/vendor/requirements.txt") {
		t.Fatalf("expected vendor path to be excluded")
	}
	if !g.matches("/root", "/root/service/requirements.txt") {
		t.Fatalf("expected service path to be included")
	}
}

func TestGlobSetNoIncludeMeansEverythingIncluded(t *testing.T) {
	g := newGlobSet(nil, []string{"**/node_modules/**"})
	if !g.matches("/root", "/root/app/package.json") {
		t.Fatalf("expected path to be included by default")
	}
	if g.matches("/root", "/root/app/node_modules/package.json") {
		t.Fatalf("expected node_modules path to be excluded")
	}
}

func TestFileWatcherStopDeliversNoFinalEvent(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	w := New(root, nil, nil, 10*time.Millisecond, 200*time.Millisecond, c.handle)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	w.Start(ctx)

	if err := os.WriteFile(filepath.Join(root, "requirements.txt"), []byte("flask\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	time.Sleep(30 * time.Millisecond) // well within the 200ms debounce window

	w.Stop()
	time.Sleep(300 * time.Millisecond) // past what the debounce window would have been

	if got := len(c.snapshot()); got != 0 {
		t.Fatalf("expected no events delivered after Stop, got %d", got)
	}
}
