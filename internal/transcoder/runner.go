package transcoder

import (
	"context"

	execute "github.com/alexellis/go-execute/v2"
)

// Result is the outcome of a finished child process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner starts a child process and waits for it. A non-nil error means the
// process could not be run to completion (not found, killed, timed out); a
// process that ran and exited nonzero is reported through Result.ExitCode.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs processes with go-execute.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	task := execute.ExecTask{
		Command:     name,
		Args:        args,
		StreamStdio: false,
	}

	res, err := task.Execute(ctx)
	out := Result{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}
	if err != nil {
		return out, err
	}
	if res.Cancelled || ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, nil
}
