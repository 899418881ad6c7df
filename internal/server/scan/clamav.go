// Package scan screens files on disk with an external antivirus engine.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	execute "github.com/alexellis/go-execute/v2"
)

// ErrNotClean is the non-clean verdict. A scanner that cannot run, exits
// non-zero, or times out yields this same verdict: fail-closed, never
// fail-open.
var ErrNotClean = errors.New("file failed virus scan")

// Scanner yields a verdict for a file already written to disk.
// A nil error is the clean verdict.
type Scanner interface {
	Scan(ctx context.Context, path string) error
}

// ClamAV invokes the clamscan binary as an isolated subprocess with a
// bounded execution time.
type ClamAV struct {
	Command string
	Timeout time.Duration
}

// NewClamAV creates a scanner around the given clamscan binary.
func NewClamAV(command string, timeout time.Duration) *ClamAV {
	return &ClamAV{Command: command, Timeout: timeout}
}

// Scan runs the engine against path. Any invocation failure is treated
// identically to an infected verdict.
//
// The wait on the subprocess runs in its own goroutine: killing the direct
// child does not unblock the wait while a grandchild still holds the output
// pipes, so the non-clean verdict is returned at the deadline regardless.
func (s *ClamAV) Scan(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	task := execute.ExecTask{
		Command: s.Command,
		Args:    []string{"--no-summary", path},
	}

	type execResult struct {
		res execute.ExecResult
		err error
	}
	done := make(chan execResult, 1)
	go func() {
		res, err := task.Execute(ctx)
		done <- execResult{res, err}
	}()

	var result execute.ExecResult
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: scan timed out after %s", ErrNotClean, s.Timeout)
		}
		return fmt.Errorf("%w: scan canceled: %v", ErrNotClean, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("%w: scanner unavailable: %v", ErrNotClean, r.err)
		}
		result = r.res
	}
	if result.ExitCode != 0 {
		slog.Warn("scanner flagged file",
			"path", path,
			"exit_code", result.ExitCode,
			"stdout", result.Stdout,
		)
		return fmt.Errorf("%w: scanner exit code %d", ErrNotClean, result.ExitCode)
	}
	return nil
}
