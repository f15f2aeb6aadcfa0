package main

import (
	"testing"
	"time"
)

func TestSecondsToDurationUsesConfiguredValue(t *testing.T) {
	if got := secondsToDuration(30, 10); got != 30*time.Second {
		t.Fatalf("expected 30s, got %v", got)
	}
}

func TestSecondsToDurationFallsBackOnZero(t *testing.T) {
	if got := secondsToDuration(0, 10); got != 10*time.Second {
		t.Fatalf("expected fallback 10s, got %v", got)
	}
	if got := secondsToDuration(-5, 10); got != 10*time.Second {
		t.Fatalf("expected fallback 10s for negative input, got %v", got)
	}
}
