package vecfs

import (
	"log/slog"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	openExisting     bool
	cacheBlocks      int
}

// Option configures Format and Mount.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for operations.
//
//	metrics := &vecfs.BasicMetricsCollector{}
//	eng, _ := vecfs.Mount(dev, vecfs.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
//	fmt.Printf("Mutations: %d, Avg latency: %dns\n", stats.MutationCount, stats.MutationAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecfs.NewJSONLogger(slog.LevelInfo)
//	eng, _ := vecfs.Mount(dev, vecfs.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithOpenExisting makes CreateFile return the id of an existing file of
// the same name instead of failing with ErrExists. Directories and
// symlinks still collide.
func WithOpenExisting(enabled bool) Option {
	return func(o *options) {
		o.openExisting = enabled
	}
}

// WithBlockCache puts a write-through LRU cache of the given number of
// blocks in front of the device. Zero disables it.
func WithBlockCache(blocks int) Option {
	return func(o *options) {
		o.cacheBlocks = blocks
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
