package runner

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Call records a single invocation against a Fake for assertions.
type Call struct {
	Program string
	Args    []string
	Workdir string
	Env     []string
}

type errEntry struct {
	result Result
	err    error
}

// Fake is a table-driven double for Interface. Expectations are keyed by
// joining program + args with a space; one entry is kept per key and it
// is returned on every matching call (entries are never consumed). An
// error entry takes precedence over a result entry for the same key.
// Calls not matched by any expectation return a descriptive error so
// test failures are easy to diagnose.
type Fake struct {
	Expect map[string]Result
	Err    map[string]errEntry
	Calls  []Call
}

// NewFake returns an empty Fake ready for expectations to be registered.
func NewFake() *Fake {
	return &Fake{
		Expect: map[string]Result{},
		Err:    map[string]errEntry{},
	}
}

func key(program string, args []string) string {
	return strings.TrimSpace(program + " " + strings.Join(args, " "))
}

// On registers the Result returned for the given program+args.
func (f *Fake) On(result Result, program string, args ...string) *Fake {
	f.Expect[key(program, args)] = result
	return f
}

// OnError registers the error returned for the given program+args, with
// no captured stdout/stderr alongside it.
func (f *Fake) OnError(err error, program string, args ...string) *Fake {
	f.Err[key(program, args)] = errEntry{err: err}
	return f
}

// OnErrorResult registers both a failing Result (e.g. captured Stderr)
// and the error returned alongside it for the given program+args.
func (f *Fake) OnErrorResult(result Result, err error, program string, args ...string) *Fake {
	f.Err[key(program, args)] = errEntry{result: result, err: err}
	return f
}

// Run implements Interface.
func (f *Fake) Run(ctx context.Context, program string, args []string, workdir string, timeout time.Duration) (Result, error) {
	return f.RunWithEnv(ctx, program, args, workdir, nil, timeout)
}

// RunWithEnv implements Interface.
func (f *Fake) RunWithEnv(ctx context.Context, program string, args []string, workdir string, extraEnv []string, timeout time.Duration) (Result, error) {
	f.Calls = append(f.Calls, Call{Program: program, Args: args, Workdir: workdir, Env: extraEnv})
	k := key(program, args)
	if entry, ok := f.Err[k]; ok {
		return entry.result, entry.err
	}
	if res, ok := f.Expect[k]; ok {
		return res, nil
	}
	return Result{}, fmt.Errorf("runner.Fake: no expectation for %q", k)
}

var _ Interface = (*Fake)(nil)
