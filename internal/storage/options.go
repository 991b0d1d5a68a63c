package storage

import "github.com/Luis200410/Improve/internal/clock"

type options struct {
	clock clock.Clock
}

// Option configures a backend.
type Option func(*options)

// WithClock sets the clock used to stamp rows the backend creates itself,
// such as lazily created profiles.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.SystemClock{}
	}
	return o
}
