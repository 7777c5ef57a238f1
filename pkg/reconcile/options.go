package reconcile

import (
	"fmt"
	"math"

	"github.com/agentstation/tally/pkg/compare"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/keys"
	"github.com/agentstation/tally/pkg/match"
)

// options configures a reconciler. Once built it is read-only and shared
// by every worker of a run.
type options struct {
	strategy    match.Strategy
	onAmbiguous match.AmbiguityPolicy
	onDuplicate match.DuplicatePolicy
	transform   keys.Transform
	tolerance   float64
	compare     []string
	timing      string
	timingMax   float64
	workers     int
}

func defaultOptions() *options {
	return &options{
		strategy:    match.Exact,
		onAmbiguous: match.OnAmbiguousError,
		onDuplicate: match.OnDuplicateError,
		transform:   keys.Trim,
		tolerance:   constants.DefaultTolerance,
		workers:     1,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithStrategy sets the matching strategy.
func WithStrategy(s match.Strategy) Option {
	return func(o *options) error {
		parsed, err := match.ParseStrategy(string(s))
		if err != nil {
			return err
		}
		o.strategy = parsed
		return nil
	}
}

// WithOnAmbiguous sets the ambiguity policy.
func WithOnAmbiguous(p match.AmbiguityPolicy) Option {
	return func(o *options) error {
		parsed, err := match.ParseAmbiguityPolicy(string(p))
		if err != nil {
			return err
		}
		o.onAmbiguous = parsed
		return nil
	}
}

// WithOnDuplicate sets the duplicate key policy.
func WithOnDuplicate(p match.DuplicatePolicy) Option {
	return func(o *options) error {
		parsed, err := match.ParseDuplicatePolicy(string(p))
		if err != nil {
			return err
		}
		o.onDuplicate = parsed
		return nil
	}
}

// WithKeyTransform sets the key transform applied to every source.
func WithKeyTransform(t keys.Transform) Option {
	return func(o *options) error {
		parsed, err := keys.ParseTransform(string(t))
		if err != nil {
			return err
		}
		o.transform = parsed
		return nil
	}
}

// WithTolerance sets the absolute numeric tolerance.
func WithTolerance(tolerance float64) Option {
	return func(o *options) error {
		if _, err := compare.New(tolerance); err != nil {
			return err
		}
		o.tolerance = tolerance
		return nil
	}
}

// WithCompare sets the compared columns. Entries may be column names or
// glob/regex patterns resolved against the primary source. Without this
// option every primary column except the key (and timing column) that all
// sources declare is compared.
func WithCompare(columns ...string) Option {
	return func(o *options) error {
		o.compare = append([]string(nil), columns...)
		return nil
	}
}

// WithTiming designates a date or sequence column and the largest allowed
// offset (days for dates, units for numbers) before a pair is a timing mismatch.
func WithTiming(column string, maxOffset float64) Option {
	return func(o *options) error {
		if column == "" {
			return &errors.ValidationError{Field: "timing.column", Message: "cannot be empty"}
		}
		if maxOffset < 0 || math.IsNaN(maxOffset) || math.IsInf(maxOffset, 0) {
			return &errors.ConfigError{Component: "timing", Message: fmt.Sprintf("max offset must be a non-negative number, got %v", maxOffset)}
		}
		o.timing = column
		o.timingMax = maxOffset
		return nil
	}
}

// WithWorkers sets how many workers classify groups concurrently.
// Output is identical for any worker count.
func WithWorkers(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return &errors.ValidationError{Field: "workers", Value: n, Message: "must be at least 1"}
		}
		o.workers = min(n, constants.MaxWorkers)
		return nil
	}
}
