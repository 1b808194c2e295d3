package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sandeepkv93/product-catalog/internal/observability"
	"github.com/sandeepkv93/product-catalog/internal/tools/ui"
)

// ExitCodeFailure is returned to the shell when a tool action fails.
const ExitCodeFailure = 3

// Action performs one tool command and returns human-readable detail lines.
type Action func(ctx context.Context) ([]string, error)

type RunOptions struct {
	Tool    string
	Command string
	CI      bool
	Timeout time.Duration
	Out     io.Writer
}

// ActionError marks a failure that has already been reported to the user.
type ActionError struct {
	Title string
	Err   error
}

func (e *ActionError) Error() string { return fmt.Sprintf("%s: %v", e.Title, e.Err) }
func (e *ActionError) Unwrap() error { return e.Err }

// Execute runs fn either in the interactive progress view or, in CI mode,
// headless with a JSON summary written to opts.Out.
func Execute(opts RunOptions, fn Action) error {
	title := opts.Tool + " " + opts.Command
	start := time.Now()

	var (
		details []string
		err     error
	)
	if opts.CI {
		ctx := context.Background()
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		details, err = fn(ctx)
	} else {
		details, err = ui.Run(title, fn)
	}
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	observability.RecordToolCommandRun(context.Background(), opts.Tool, opts.Command, outcome)
	observability.RecordToolCommandDuration(context.Background(), opts.Tool, opts.Command, outcome, elapsed)

	if opts.CI {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		WriteCIResult(out, err == nil, title, details, err, elapsed)
	}
	if err != nil {
		return &ActionError{Title: title, Err: err}
	}
	return nil
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return ExitCodeFailure
	}
	return 1
}
