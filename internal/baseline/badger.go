package baseline

import (
	"context"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/logging"
)

const gcDiscardRatio = 0.5

// badgerStore keeps records under "baseline/<name>/<created-unix-nano>/<id>"
// so a reverse prefix scan yields newest first.
type badgerStore struct {
	db *badger.DB
}

// badgerLogger adapts zerolog to badger's Logger interface.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any)   { logging.Default().Error().Msgf(format, args...) }
func (badgerLogger) Warningf(format string, args ...any) { logging.Default().Warn().Msgf(format, args...) }
func (badgerLogger) Infof(format string, args ...any)    { logging.Default().Debug().Msgf(format, args...) }
func (badgerLogger) Debugf(format string, args ...any)   { logging.Default().Debug().Msgf(format, args...) }

func openBadger(cfg Config) (*badgerStore, error) {
	var opts badger.Options
	if cfg.Driver == DriverMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, &errors.ConfigError{Component: "store", Message: "path is required for the badger driver"}
		}
		if err := os.MkdirAll(cfg.Path, constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WrapIO("open", cfg.Path, err)
	}
	return &badgerStore{db: db}, nil
}

func prefix(name string) []byte {
	return []byte("baseline/" + name + "/")
}

func recordKey(r *Record) []byte {
	return []byte(fmt.Sprintf("baseline/%s/%020d/%s", r.Name, r.CreatedAt.UnixNano(), r.ID))
}

func (s *badgerStore) Save(_ context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := r.marshal()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(r), data)
	})
}

func (s *badgerStore) Latest(ctx context.Context, name string) (*Record, error) {
	records, err := s.History(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, notFound(name)
	}
	return records[0], nil
}

func (s *badgerStore) History(ctx context.Context, name string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	var out []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix(name)
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(prefix(name), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix) && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := unmarshal(data)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (s *badgerStore) Close() error {
	// reclaim value log space; ErrNoRewrite just means nothing to collect
	if err := s.db.RunValueLogGC(gcDiscardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		logging.Default().Debug().Err(err).Msg("Baseline value log GC skipped")
	}
	return s.db.Close()
}
