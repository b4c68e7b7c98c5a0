package ipregistry

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	threshold   float64
	parallelism int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithThreshold sets the default similarity threshold, in (0, 1]. Default: 0.9.
func WithThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.threshold = t
	})
}

// WithParallelism scores up to n records concurrently. With n > 1 the reported
// duplicate is the first found, not necessarily the lowest index. Default: 1.
func WithParallelism(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.parallelism = n
	})
}

// WithLogger sets a structured logger for SDK operations.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics with the given registerer.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// CheckOption tunes a single CheckDuplicate call.
type CheckOption func(*checkConfig)

type checkConfig struct {
	threshold float64
	exclude   *int
}

// CheckThreshold overrides the client threshold for one check.
func CheckThreshold(t float64) CheckOption {
	return func(c *checkConfig) { c.threshold = t }
}

// ExcludeIndex skips one corpus record, typically the candidate itself.
func ExcludeIndex(index int) CheckOption {
	return func(c *checkConfig) { c.exclude = &index }
}
