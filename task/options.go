package task

import "time"

// Options configures a Manager. The zero value is never used directly;
// construct via NewManager's functional options, mirroring the pattern
// the pipeline package's own options.go-equivalent NodeOption uses.
type Options struct {
	checkInterval time.Duration
	timeout       time.Duration
	ttl           time.Duration
}

// Option configures a Manager at construction time.
type Option func(*Options)

// WithCheckInterval sets how often the watcher polls the result store for
// completion. Default 2s.
func WithCheckInterval(d time.Duration) Option {
	return func(o *Options) { o.checkInterval = d }
}

// WithTimeout sets the wall-clock budget a task gets before the watcher
// flips it to TIMEOUT. Default 30 minutes.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.timeout = d }
}

// WithTTL sets the registry record's expiration relative to creation.
// Default 24 hours.
func WithTTL(d time.Duration) Option {
	return func(o *Options) { o.ttl = d }
}

func defaultOptions() Options {
	return Options{
		checkInterval: 2 * time.Second,
		timeout:       30 * time.Minute,
		ttl:           24 * time.Hour,
	}
}
