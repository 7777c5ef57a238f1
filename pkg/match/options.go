package match

import (
	"fmt"
	"strings"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
)

// Strategy decides when a left key pairs with a right key.
type Strategy string

// Matching strategies.
const (
	// Exact pairs keys only on normalized-string equality.
	Exact Strategy = "exact"
	// Contains pairs a left key with a right key that contains it.
	Contains Strategy = "contains"
)

// AmbiguityPolicy decides what an ambiguous group does to the run.
type AmbiguityPolicy string

// Ambiguity policies.
const (
	// OnAmbiguousError aborts the run, reporting every ambiguous group.
	OnAmbiguousError AmbiguityPolicy = "error"
	// OnAmbiguousReport keeps going and reports ambiguous groups as data.
	OnAmbiguousReport AmbiguityPolicy = "report"
)

// DuplicatePolicy decides what repeated keys on one side do to the run.
type DuplicatePolicy string

// Duplicate policies.
const (
	// OnDuplicateError fails fast, reporting every duplicated key.
	OnDuplicateError DuplicatePolicy = "error"
	// OnDuplicateAggregate rolls rows sharing a key into one group side.
	OnDuplicateAggregate DuplicatePolicy = "aggregate"
)

// Options configures a match.
type Options struct {
	Strategy    Strategy
	OnAmbiguous AmbiguityPolicy
	OnDuplicate DuplicatePolicy

	// LeftName and RightName label the sides in errors and reports.
	LeftName  string
	RightName string
}

// DefaultOptions returns exact matching that errors on duplicates and ambiguity.
func DefaultOptions() Options {
	return Options{
		Strategy:    Exact,
		OnAmbiguous: OnAmbiguousError,
		OnDuplicate: OnDuplicateError,
		LeftName:    constants.DefaultLeftName,
		RightName:   constants.DefaultRightName,
	}
}

// Validate checks the options and fills in side names.
func (o *Options) Validate() error {
	if o.Strategy == "" {
		o.Strategy = Exact
	}
	if o.OnAmbiguous == "" {
		o.OnAmbiguous = OnAmbiguousError
	}
	if o.OnDuplicate == "" {
		o.OnDuplicate = OnDuplicateError
	}
	if o.LeftName == "" {
		o.LeftName = constants.DefaultLeftName
	}
	if o.RightName == "" {
		o.RightName = constants.DefaultRightName
	}
	if _, err := ParseStrategy(string(o.Strategy)); err != nil {
		return err
	}
	if _, err := ParseAmbiguityPolicy(string(o.OnAmbiguous)); err != nil {
		return err
	}
	if _, err := ParseDuplicatePolicy(string(o.OnDuplicate)); err != nil {
		return err
	}
	return nil
}

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case Exact:
		return Exact, nil
	case Contains:
		return Contains, nil
	}
	return "", &errors.ConfigError{
		Component: "match",
		Message:   fmt.Sprintf("unknown match strategy %q (want exact or contains)", s),
	}
}

// ParseAmbiguityPolicy parses an on_ambiguous value.
func ParseAmbiguityPolicy(s string) (AmbiguityPolicy, error) {
	switch AmbiguityPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case OnAmbiguousError:
		return OnAmbiguousError, nil
	case OnAmbiguousReport:
		return OnAmbiguousReport, nil
	}
	return "", &errors.ConfigError{
		Component: "on_ambiguous",
		Message:   fmt.Sprintf("unknown ambiguity policy %q (want error or report)", s),
	}
}

// ParseDuplicatePolicy parses an on_duplicate value.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case OnDuplicateError:
		return OnDuplicateError, nil
	case OnDuplicateAggregate:
		return OnDuplicateAggregate, nil
	}
	return "", &errors.ConfigError{
		Component: "on_duplicate",
		Message:   fmt.Sprintf("unknown duplicate policy %q (want error or aggregate)", s),
	}
}
