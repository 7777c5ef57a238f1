// Package policy turns structural drift, bucket counts and point assertions
// into a single verdict and a process exit code.
package policy

import (
	"strings"

	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/reconcile"
)

// Severity is the outcome a policy assigns to a triggered check.
type Severity string

// Severities, from least to most severe.
const (
	Pass Severity = "pass"
	Warn Severity = "warn"
	Fail Severity = "fail"
)

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case Pass:
		return Pass, nil
	case Warn:
		return Warn, nil
	case Fail:
		return Fail, nil
	default:
		return "", &errors.ValidationError{Field: "severity", Value: s, Message: "must be pass, warn or fail"}
	}
}

func (s Severity) rank() int {
	switch s {
	case Fail:
		return 2
	case Warn:
		return 1
	default:
		return 0
	}
}

// Status is the outcome of a check or of a whole verdict.
type Status string

// Statuses. BaselineCreated is only ever a verdict status.
const (
	StatusPass            Status = "pass"
	StatusWarn            Status = "warn"
	StatusFail            Status = "fail"
	StatusBaselineCreated Status = "baseline_created"
)

func statusOf(s Severity) Status {
	switch s {
	case Fail:
		return StatusFail
	case Warn:
		return StatusWarn
	default:
		return StatusPass
	}
}

func (s Status) rank() int {
	switch s {
	case StatusFail:
		return 2
	case StatusWarn:
		return 1
	default:
		return 0
	}
}

// OneSidedKey configures every one-sided bucket at once in Config.Buckets.
const OneSidedKey = "one_sided"

// Config maps each drift type and bucket to a severity.
type Config struct {
	RowCount Severity `json:"row_count" yaml:"row_count" mapstructure:"row_count"`

	// RowCountIncrease and RowCountDecrease refine RowCount by direction
	// when set.
	RowCountIncrease Severity `json:"row_count_increase,omitempty" yaml:"row_count_increase,omitempty" mapstructure:"row_count_increase"`
	RowCountDecrease Severity `json:"row_count_decrease,omitempty" yaml:"row_count_decrease,omitempty" mapstructure:"row_count_decrease"`

	ColumnsAdded       Severity `json:"columns_added" yaml:"columns_added" mapstructure:"columns_added"`
	ColumnsRemoved     Severity `json:"columns_removed" yaml:"columns_removed" mapstructure:"columns_removed"`
	FingerprintChanged Severity `json:"fingerprint_changed" yaml:"fingerprint_changed" mapstructure:"fingerprint_changed"`

	// Buckets overrides bucket severities by bucket name, or for all
	// one-sided buckets with OneSidedKey.
	Buckets map[string]Severity `json:"buckets,omitempty" yaml:"buckets,omitempty" mapstructure:"buckets"`
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		RowCount:           Warn,
		ColumnsAdded:       Warn,
		ColumnsRemoved:     Fail,
		FingerprintChanged: Pass,
	}
}

// Strict returns a copy of c with every structural check raised to fail.
func (c Config) Strict() Config {
	c.RowCount = Fail
	c.RowCountIncrease = Fail
	c.RowCountDecrease = Fail
	c.ColumnsAdded = Fail
	c.ColumnsRemoved = Fail
	c.FingerprintChanged = Fail
	return c
}

// Validate checks every configured severity and fills unset ones with
// defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()
	fields := []struct {
		name     string
		value    *Severity
		fallback Severity
	}{
		{"row_count", &c.RowCount, def.RowCount},
		{"row_count_increase", &c.RowCountIncrease, ""},
		{"row_count_decrease", &c.RowCountDecrease, ""},
		{"columns_added", &c.ColumnsAdded, def.ColumnsAdded},
		{"columns_removed", &c.ColumnsRemoved, def.ColumnsRemoved},
		{"fingerprint_changed", &c.FingerprintChanged, def.FingerprintChanged},
	}
	for _, f := range fields {
		if *f.value == "" {
			*f.value = f.fallback
			continue
		}
		s, err := ParseSeverity(string(*f.value))
		if err != nil {
			return errors.NewConfigError("policy."+f.name, err.Error(), err)
		}
		*f.value = s
	}
	for name, sev := range c.Buckets {
		s, err := ParseSeverity(string(sev))
		if err != nil {
			return errors.NewConfigError("policy.buckets."+name, err.Error(), err)
		}
		c.Buckets[name] = s
	}
	return nil
}

// rowCount returns the severity for a row count change.
func (c Config) rowCount(change int) Severity {
	switch {
	case change > 0 && c.RowCountIncrease != "":
		return c.RowCountIncrease
	case change < 0 && c.RowCountDecrease != "":
		return c.RowCountDecrease
	default:
		return c.RowCount
	}
}

// bucket returns the severity of a bucket.
func (c Config) bucket(b reconcile.Bucket) Severity {
	if s, ok := c.Buckets[string(b)]; ok {
		return s
	}
	if b.OneSided() {
		if s, ok := c.Buckets[OneSidedKey]; ok {
			return s
		}
		return Warn
	}
	switch b {
	case reconcile.AmountMismatch, reconcile.Ambiguous:
		return Fail
	case reconcile.TimingMismatch:
		return Warn
	default:
		return Pass
	}
}
