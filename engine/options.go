package engine

import "time"

const (
	// DefaultTimeBudget bounds the wall-clock time of a single search.
	DefaultTimeBudget = 5 * time.Second

	// DefaultMaxDepth bounds the combined expansion depth of both
	// frontiers, i.e. the longest degree of separation a search reports.
	DefaultMaxDepth = 6

	// DefaultRetryAttempts is the per-round try budget for a shard lookup.
	DefaultRetryAttempts = 3

	// DefaultRetryBackoff is the initial delay between lookup retries.
	// It doubles after each failed attempt.
	DefaultRetryBackoff = 10 * time.Millisecond
)

// Options configure searches and mutation retries.
type Options struct {
	// TimeBudget bounds the wall-clock time of one search.
	TimeBudget time.Duration

	// MaxDepth bounds the combined expansion depth of both frontiers.
	MaxDepth int

	// RetryAttempts is the number of tries for a failing shard lookup.
	RetryAttempts int

	// RetryBackoff is the initial delay between retries.
	RetryBackoff time.Duration

	// Workers sizes the fan-out worker pool. Zero means one worker per
	// shard, or GOMAXPROCS if that is larger.
	Workers int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		TimeBudget:    DefaultTimeBudget,
		MaxDepth:      DefaultMaxDepth,
		RetryAttempts: DefaultRetryAttempts,
		RetryBackoff:  DefaultRetryBackoff,
	}
}

// Option customizes Options.
type Option func(*Options)

// WithTimeBudget sets the per-search time budget.
func WithTimeBudget(d time.Duration) Option {
	return func(o *Options) {
		o.TimeBudget = d
	}
}

// WithMaxDepth sets the combined depth limit.
func WithMaxDepth(depth int) Option {
	return func(o *Options) {
		o.MaxDepth = depth
	}
}

// WithRetry sets the shard lookup retry policy.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(o *Options) {
		o.RetryAttempts = attempts
		o.RetryBackoff = backoff
	}
}

// WithWorkers sizes the fan-out worker pool.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

func applyOptions(optFns ...Option) Options {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return normalizeOptions(opts)
}

func normalizeOptions(opts Options) Options {
	if opts.TimeBudget <= 0 {
		opts.TimeBudget = DefaultTimeBudget
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = DefaultRetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return opts
}
