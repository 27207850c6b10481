package runner

import (
	"context"
	"time"
)

// Interface is the seam every client package depends on instead of
// *Runner directly, so tests can inject a table-driven fake.
type Interface interface {
	Run(ctx context.Context, program string, args []string, workdir string, timeout time.Duration) (Result, error)
	RunWithEnv(ctx context.Context, program string, args []string, workdir string, extraEnv []string, timeout time.Duration) (Result, error)
}

var _ Interface = (*Runner)(nil)
