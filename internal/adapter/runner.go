package adapter

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner abstracts subprocess invocation so adapters can be exercised in
// tests without spawning a real package manager.
type Runner interface {
	// Run invokes name with args in dir, returning combined stdout+stderr
	// and the process exit code. err is non-nil only when the process
	// could not be started or was killed by ctx cancellation -- a nonzero
	// exit from a process that ran to completion is reported via exitCode,
	// not err.
	Run(ctx context.Context, dir, name string, args ...string) (output string, exitCode int, err error)
}

// ExecRunner runs real subprocesses via os/exec, capturing combined
// stdout+stderr into a single buffer.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if err == nil {
		return buf.String(), 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return buf.String(), -1, ctxErr
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return buf.String(), exitErr.ExitCode(), nil
	}
	return buf.String(), -1, err
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}
