package reconcile

import (
	"fmt"

	"github.com/agentstation/tally/pkg/dataset"
	"github.com/agentstation/tally/pkg/errors"
)

// Source is one dataset participating in a run.
type Source struct {
	// Name labels the source in buckets and reports (left, right, ledger...).
	Name string

	// Data is the loaded dataset.
	Data *dataset.Dataset

	// Key is the key column of this source.
	Key string

	// Columns maps a compared (or timing) column name to this source's own
	// column name when they differ. Unmapped columns use the same name.
	Columns map[string]string
}

// column returns this source's name for a compared column.
func (s Source) column(name string) string {
	if mapped, ok := s.Columns[name]; ok && mapped != "" {
		return mapped
	}
	return name
}

// validateSources checks there are at least two uniquely named sources
// with valid datasets and declared key columns.
func validateSources(sources []Source) error {
	if len(sources) < 2 {
		return &errors.ValidationError{Field: "sources", Value: len(sources), Message: "at least two sources are required"}
	}
	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		if s.Name == "" {
			return &errors.ValidationError{Field: "sources", Value: i, Message: fmt.Sprintf("source %d has no name", i)}
		}
		if seen[s.Name] {
			return &errors.ValidationError{Field: "sources", Value: s.Name, Message: fmt.Sprintf("source name %q used twice", s.Name)}
		}
		seen[s.Name] = true
		if s.Data == nil {
			return &errors.ValidationError{Field: "sources", Value: s.Name, Message: "dataset cannot be nil"}
		}
		if err := s.Data.Validate(); err != nil {
			return err
		}
		if s.Key == "" {
			return &errors.ConfigError{Component: "key", Message: fmt.Sprintf("source %s has no key column", s.Name)}
		}
		if !s.Data.HasColumn(s.Key) {
			return &errors.ConfigError{Component: "key", Message: fmt.Sprintf("key column %q not found in source %s", s.Key, s.Name)}
		}
		for from, to := range s.Columns {
			if !s.Data.HasColumn(to) {
				return &errors.ConfigError{Component: "columns", Message: fmt.Sprintf("column %q (for %q) not found in source %s", to, from, s.Name)}
			}
		}
	}
	return nil
}
