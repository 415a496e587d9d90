package fiber

// SchedulerOption configures a Scheduler or IOManager at construction
// time. There is no configuration file; every knob is a constructor
// argument, matching the spec's "no configuration file" stance.
type SchedulerOption interface {
	apply(*schedulerOptions)
}

type schedulerOptions struct {
	logger      Logger
	pollTimeout int64
	rateLimiter pollErrorLimiter
}

type schedulerOptionFunc func(*schedulerOptions)

func (f schedulerOptionFunc) apply(o *schedulerOptions) { f(o) }

// WithLogger overrides the no-op default logger.
func WithLogger(l Logger) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithPollTimeout clamps the idle loop's maximum epoll wait, in
// milliseconds. The spec fixes the ceiling at 3000ms; this option can
// only lower it, never raise it past that ceiling.
func WithPollTimeout(ms int64) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		if ms > 0 && ms < o.pollTimeout {
			o.pollTimeout = ms
		}
	})
}

// WithRateLimiter installs a rate limiter governing how often repeated
// poll-error log lines are emitted. Defaults to an unlimited limiter.
func WithRateLimiter(l pollErrorLimiter) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		if l != nil {
			o.rateLimiter = l
		}
	})
}

func resolveSchedulerOptions(opts []SchedulerOption) schedulerOptions {
	o := schedulerOptions{
		logger:      NewNoOpLogger(),
		pollTimeout: maxPollTimeoutMillis,
		rateLimiter: noOpPollErrorLimiter{},
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
