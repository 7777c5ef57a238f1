// Package baseline stores the last known-good shape of each checked dataset.
//
// A baseline records a dataset's schema, row count, column totals and the
// fingerprint of its content tree. The check command compares a new run
// against the latest baseline and appends a new one when the run is
// accepted. Records are append-only; history is kept per dataset name.
package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/tally/pkg/differ"
	"github.com/agentstation/tally/pkg/errors"
)

// Driver selects a storage backend.
type Driver string

// Drivers.
const (
	DriverBadger Driver = "badger"
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

// ParseDriver parses a driver name.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case DriverBadger, DriverSQLite, DriverMemory:
		return d, nil
	case "":
		return DriverBadger, nil
	default:
		return "", &errors.ValidationError{Field: "store.driver", Value: s, Message: "must be badger, sqlite or memory"}
	}
}

// Record is one stored baseline.
type Record struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	CreatedAt   time.Time     `json:"created_at"`
	Schema      differ.Schema `json:"schema"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Status      string        `json:"status"`
}

// Validate checks a record can be stored.
func (r *Record) Validate() error {
	if r == nil {
		return &errors.ValidationError{Field: "record", Message: "cannot be nil"}
	}
	if strings.TrimSpace(r.Name) == "" {
		return &errors.ValidationError{Field: "record.name", Message: "cannot be empty"}
	}
	if r.ID == "" {
		return &errors.ValidationError{Field: "record.id", Message: "cannot be empty"}
	}
	if r.CreatedAt.IsZero() {
		return &errors.ValidationError{Field: "record.created_at", Message: "cannot be zero"}
	}
	return nil
}

func (r *Record) marshal() ([]byte, error) {
	return json.Marshal(r)
}

func unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.WrapParse("baseline", "", err)
	}
	return &r, nil
}

// Store persists baselines.
type Store interface {
	// Latest returns the newest record of a dataset, or a NotFoundError.
	Latest(ctx context.Context, name string) (*Record, error)

	// Save appends a record.
	Save(ctx context.Context, r *Record) error

	// History returns up to limit records of a dataset, newest first.
	History(ctx context.Context, name string, limit int) ([]*Record, error)

	// Close releases the store.
	Close() error
}

// Config configures a store.
type Config struct {
	Driver     Driver
	Path       string
	SyncWrites bool
}

// Open opens a store.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return openSQLite(cfg)
	case DriverBadger, DriverMemory, "":
		return openBadger(cfg)
	default:
		return nil, &errors.ConfigError{Component: "store", Message: fmt.Sprintf("unknown driver %q", cfg.Driver)}
	}
}

func notFound(name string) error {
	return &errors.NotFoundError{Resource: "baseline", ID: name}
}
