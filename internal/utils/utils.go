package utils

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/apex/log/handlers/cli"
)

var normalPadding = cli.Default.Padding

type stop struct {
	error
}

// Stop wraps err so that Retry gives up and returns err as is.
func Stop(err error) error {
	return stop{err}
}

// Retry calls f until it succeeds, returns a Stop error or attempts run out.
// The sleep between attempts doubles each time, with jitter.
func Retry(ctx context.Context, attempts int, sleep time.Duration, f func() error) error {
	err := f()
	if err == nil {
		return nil
	}
	if s, ok := err.(stop); ok {
		// Return the original error for later checking
		return s.error
	}
	if attempts--; attempts <= 0 {
		return fmt.Errorf("out of attempts: %w", err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	if sleep > 0 {
		sleep += time.Duration(rand.Int64N(int64(sleep))) / 2
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	case <-time.After(sleep):
	}
	return Retry(ctx, attempts, 2*sleep, f)
}

// Indent indents apex log line to supplied level
func Indent(f func(s string), level int) func(string) {
	return func(s string) {
		cli.Default.Padding = normalPadding * level
		f(s)
		cli.Default.Padding = normalPadding
	}
}
