package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInfoRecordGoesOnlyToServiceLog(t *testing.T) {
	dir := t.TempDir()
	infoPath := filepath.Join(dir, "service.log")
	errPath := filepath.Join(dir, "service_error.log")

	h, closeFn, err := New(infoPath, errPath)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer closeFn()

	logger := slog.New(h)
	logger.Info("reconciled project", "ecosystem", "python")

	infoData, _ := os.ReadFile(infoPath)
	errData, _ := os.ReadFile(errPath)
	if !strings.Contains(string(infoData), "reconciled project") {
		t.Fatalf("expected info message in service.log, got %q", infoData)
	}
	if len(bytes.TrimSpace(errData)) != 0 {
		t.Fatalf("expected service_error.log empty for an info record, got %q", errData)
	}
}

func TestWarnRecordGoesToBothLogs(t *testing.T) {
	dir := t.TempDir()
	infoPath := filepath.Join(dir, "service.log")
	errPath := filepath.Join(dir, "service_error.log")

	h, closeFn, err := New(infoPath, errPath)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer closeFn()

	logger := slog.New(h)
	logger.Warn("advisor unreachable")

	infoData, _ := os.ReadFile(infoPath)
	errData, _ := os.ReadFile(errPath)
	if !strings.Contains(string(infoData), "advisor unreachable") {
		t.Fatalf("expected warn message in service.log too, got %q", infoData)
	}
	if !strings.Contains(string(errData), "advisor unreachable") {
		t.Fatalf("expected warn message in service_error.log, got %q", errData)
	}
}

func TestRecordsAreValidJSON(t *testing.T) {
	dir := t.TempDir()
	infoPath := filepath.Join(dir, "service.log")
	errPath := filepath.Join(dir, "service_error.log")

	h, closeFn, err := New(infoPath, errPath)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer closeFn()

	slog.New(h).Info("task completed", "task_id", "abc123")

	data, err := os.ReadFile(infoPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", data, err)
	}
	if raw["task_id"] != "abc123" {
		t.Fatalf("expected task_id field, got %+v", raw)
	}
}
