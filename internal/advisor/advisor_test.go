package advisor

import (
	"errors"
	"testing"
	"time"

	"github.com/riverrun/depwatch/internal/depwatcherrors"
	"github.com/riverrun/depwatch/internal/reconcile"
)

func TestAnalyzeReturnsAdvisorUnavailableWhenUnreachable(t *testing.T) {
	c := New("nats://127.0.0.1:1", WithRequestTimeout(50*time.Millisecond), WithReconnectInterval(time.Minute))

	_, err := c.Analyze(t.Context(), []reconcile.Declared{{Name: "requests", VersionSpec: ">=2.0"}}, "requests>=2.0\n", "python")
	if !errors.Is(err, depwatcherrors.ErrAdvisorUnavailable) {
		t.Fatalf("expected ErrAdvisorUnavailable, got %v", err)
	}
}

func TestConnectionBacksOffAfterFailure(t *testing.T) {
	c := New("nats://127.0.0.1:1", WithRequestTimeout(20*time.Millisecond), WithReconnectInterval(time.Hour))

	if _, err := c.connection(); err == nil {
		t.Fatalf("expected first connection attempt to fail")
	}
	first := c.lastAttempt

	if _, err := c.connection(); err == nil {
		t.Fatalf("expected second connection attempt to fail")
	}
	if !c.lastAttempt.Equal(first) {
		t.Fatalf("expected lastAttempt to stay put within the reconnect interval, got %v then %v", first, c.lastAttempt)
	}
}

func TestClientSatisfiesReconcileAdvisor(t *testing.T) {
	var _ reconcile.Advisor = New("nats://127.0.0.1:1")
}
