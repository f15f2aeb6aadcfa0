// Package logging configures depwatch's split structured-logging handlers:
// every record to service.log, and Warn/Error additionally to
// service_error.log.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// levelSplitHandler sends every record to the info handler, and anything at
// Warn or above to the err handler as well, so service_error.log is a
// strict subset of service.log
// rather than a disjoint stream an operator has to cross-reference.
type levelSplitHandler struct {
	info slog.Handler
	err  slog.Handler
}

// New builds the split handler, opening (creating/appending) infoPath and
// errPath.
func New(infoPath, errPath string) (slog.Handler, func() error, error) {
	infoFile, err := os.OpenFile(infoPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", infoPath, err)
	}
	errFile, err := os.OpenFile(errPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		infoFile.Close()
		return nil, nil, fmt.Errorf("open %s: %w", errPath, err)
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	h := levelSplitHandler{
		info: slog.NewJSONHandler(infoFile, opts),
		err:  slog.NewJSONHandler(errFile, opts),
	}
	closeFn := func() error {
		errA := infoFile.Close()
		errB := errFile.Close()
		if errA != nil {
			return errA
		}
		return errB
	}
	return h, closeFn, nil
}

func (h levelSplitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.info.Enabled(ctx, level) || h.err.Enabled(ctx, level)
}

func (h levelSplitHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.info.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= slog.LevelWarn {
		return h.err.Handle(ctx, r)
	}
	return nil
}

func (h levelSplitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelSplitHandler{info: h.info.WithAttrs(attrs), err: h.err.WithAttrs(attrs)}
}

func (h levelSplitHandler) WithGroup(name string) slog.Handler {
	return levelSplitHandler{info: h.info.WithGroup(name), err: h.err.WithGroup(name)}
}

// NewDiscarding builds a handler that writes nowhere, for tests that
// construct components needing a *slog.Logger but don't assert on output.
func NewDiscarding() slog.Handler {
	return slog.NewJSONHandler(io.Discard, nil)
}
