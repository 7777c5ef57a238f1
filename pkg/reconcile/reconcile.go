// Package reconcile matches rows of two or more datasets by business key
// and classifies every key into an outcome bucket.
//
// The first source is the primary. Every other source is matched pairwise
// against it, compared column by column under an absolute tolerance, and
// the pairwise outcomes are folded into one bucket per key at the most
// severe level. Classification is sharded across workers; the output does
// not depend on the worker count.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/tally/internal/matcher"
	"github.com/agentstation/tally/pkg/compare"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/keys"
	"github.com/agentstation/tally/pkg/logging"
	"github.com/agentstation/tally/pkg/match"
)

// Reconciler reconciles datasets.
type Reconciler interface {
	// Reconcile matches and classifies sources; sources[0] is the primary.
	// Duplicate keys under on_duplicate=error return a nil result. Ambiguous
	// keys under on_ambiguous=error return the full result together with an
	// error listing every ambiguous group.
	Reconcile(ctx context.Context, sources ...Source) (*Result, error)
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	options *options
}

// New creates a new Reconciler with options.
func New(opts ...Option) (Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{options: options}, nil
}

// runContext holds the state of one run.
type runContext struct {
	sources    []Source
	columns    []string
	comparator *compare.Comparator
	logger     *zerolog.Logger
	runID      string
	startTime  time.Time
}

// Reconcile performs reconciliation step by step.
func (r *reconciler) Reconcile(ctx context.Context, sources ...Source) (*Result, error) {
	// Step 1: Validate sources and resolve compared columns
	rctx, err := r.initialize(ctx, sources)
	if err != nil {
		return nil, err
	}

	// Step 2: Normalize keys of every source
	sourceKeys, err := r.extractKeys(rctx)
	if err != nil {
		return nil, err
	}

	// Step 3: Match every non-primary source against the primary
	pairings, ambErr, err := r.matchAll(rctx, sourceKeys)
	if err != nil {
		return nil, err
	}

	// Step 4: Fold pairings into groups and classify them
	groups := r.buildGroups(rctx, pairings)
	r.classifyAll(rctx, groups)

	// Step 5: Reduce run-level aggregates
	result := r.result(rctx, groups)

	rctx.logger.Info().
		Int("groups", result.Summary.Groups).
		Int("matched", result.Summary.Count(Matched)).
		Int("diff_outside_tolerance", result.Summary.DiffOutsideTolerance).
		Dur("duration", result.Metadata.Duration).
		Msg("Reconciliation complete")

	if ambErr != nil {
		return result, ambErr
	}
	return result, nil
}

// initialize validates the sources and resolves compared columns.
func (r *reconciler) initialize(ctx context.Context, sources []Source) (*runContext, error) {
	if err := validateSources(sources); err != nil {
		return nil, err
	}

	comparator, err := compare.New(r.options.tolerance)
	if err != nil {
		return nil, err
	}

	columns, err := r.resolveColumns(sources)
	if err != nil {
		return nil, err
	}

	runID := logging.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := logging.FromContext(ctx).With().Str("run_id", runID).Logger()
	logger.Debug().
		Int("sources", len(sources)).
		Strs("compare", columns).
		Str("match", string(r.options.strategy)).
		Str("key_transform", string(r.options.transform)).
		Float64("tolerance", r.options.tolerance).
		Msg("Starting reconciliation")

	return &runContext{
		sources:    sources,
		columns:    columns,
		comparator: comparator,
		logger:     &logger,
		runID:      runID,
		startTime:  time.Now(),
	}, nil
}

// resolveColumns expands the compared column patterns against the primary
// and checks every source declares the result.
func (r *reconciler) resolveColumns(sources []Source) ([]string, error) {
	primary := sources[0]
	exclude := []string{primary.Key}
	if r.options.timing != "" {
		exclude = append(exclude, r.options.timing)
	}

	declaredByAll := func(column string) bool {
		for _, src := range sources {
			if !src.Data.HasColumn(src.column(column)) {
				return false
			}
		}
		return true
	}

	if r.options.timing != "" && !declaredByAll(r.options.timing) {
		return nil, &errors.ConfigError{Component: "timing", Message: fmt.Sprintf("timing column %q is not declared by every source", r.options.timing)}
	}

	if len(r.options.compare) == 0 {
		var columns []string
		for _, c := range primary.Data.Columns {
			if c != primary.Key && c != r.options.timing && declaredByAll(c) {
				columns = append(columns, c)
			}
		}
		return columns, nil
	}

	columns, err := matcher.SelectColumns(r.options.compare, primary.Data.Columns, exclude...)
	if err != nil {
		return nil, &errors.ConfigError{Component: "compare", Message: err.Error(), Err: err}
	}
	for _, c := range columns {
		if !declaredByAll(c) {
			return nil, &errors.ConfigError{Component: "compare", Message: fmt.Sprintf("compare column %q is not declared by every source", c)}
		}
	}
	return columns, nil
}

// extractKeys normalizes the key column of every source.
func (r *reconciler) extractKeys(rctx *runContext) ([][]keys.Key, error) {
	out := make([][]keys.Key, len(rctx.sources))
	for i, src := range rctx.sources {
		ks, err := keys.Extract(src.Data, src.Key, r.options.transform)
		if err != nil {
			return nil, err
		}
		out[i] = ks
	}
	return out, nil
}

// matchAll matches each non-primary source against the primary. Duplicate
// keys from every pairing are merged into one error; ambiguity errors are
// merged and returned separately so the run can still be reported.
func (r *reconciler) matchAll(rctx *runContext, sourceKeys [][]keys.Key) ([]*match.Pairing, error, error) {
	primary := rctx.sources[0]
	pairings := make([]*match.Pairing, 0, len(rctx.sources)-1)

	var dups []errors.DuplicateKey
	seenDup := make(map[errors.DuplicateKey]bool)
	var ambiguous []errors.AmbiguousKey

	for i, src := range rctx.sources[1:] {
		pairing, err := match.Match(sourceKeys[0], sourceKeys[i+1], match.Options{
			Strategy:    r.options.strategy,
			OnAmbiguous: r.options.onAmbiguous,
			OnDuplicate: r.options.onDuplicate,
			LeftName:    primary.Name,
			RightName:   src.Name,
		})
		var dupErr *errors.DuplicateKeyError
		var ambErr *errors.AmbiguityError
		switch {
		case err == nil:
		case errors.As(err, &dupErr):
			for _, d := range dupErr.Duplicates {
				if !seenDup[d] {
					seenDup[d] = true
					dups = append(dups, d)
				}
			}
			continue
		case errors.As(err, &ambErr):
			ambiguous = append(ambiguous, ambErr.Groups...)
		default:
			return nil, nil, err
		}
		rctx.logger.Debug().
			Str("source", src.Name).
			Int("pairs", len(pairing.Pairs)).
			Int("ambiguous", len(pairing.Ambiguous())).
			Msg("Matched source against primary")
		pairings = append(pairings, pairing)
	}

	if len(dups) > 0 {
		return nil, nil, errors.NewDuplicateKeyError(dups)
	}
	if len(ambiguous) > 0 {
		return pairings, &errors.AmbiguityError{Groups: ambiguous}, nil
	}
	return pairings, nil, nil
}

// buildGroups folds pairings into groups: one group per primary key (in
// primary order), then one group per unmatched key of each other source.
func (r *reconciler) buildGroups(rctx *runContext, pairings []*match.Pairing) []*Group {
	primary := rctx.sources[0]

	leftCount := 0
	for _, p := range pairings[0].Pairs {
		if p.Left != nil {
			leftCount++
		}
	}

	groups := make([]*Group, 0, leftCount)
	for j := 0; j < leftCount; j++ {
		entry := pairings[0].Pairs[j].Left
		g := &Group{Key: entry.Key, KeyRaw: entry.Raw}
		g.Sides = append(g.Sides, &Side{Source: primary.Name, KeyRaw: entry.Raw, rowIndex: entry.Rows})

		for i, pairing := range pairings {
			name := rctx.sources[i+1].Name
			pair := pairing.Pairs[j]
			if pair.Ambiguous {
				if g.ambiguous == nil {
					g.ambiguous = make(map[string]bool)
				}
				g.ambiguous[name] = true
				for _, c := range pair.Candidates {
					g.Candidates = append(g.Candidates, Candidate{Source: name, Candidate: c})
				}
			}
			if pair.Right != nil {
				g.Sides = append(g.Sides, &Side{Source: name, KeyRaw: pair.Right.Raw, rowIndex: pair.Right.Rows})
			}
			if pair.Explain != nil {
				g.Explain = append(g.Explain, Explain{Source: name, Explain: *pair.Explain})
			}
		}
		groups = append(groups, g)
	}

	for i, pairing := range pairings {
		name := rctx.sources[i+1].Name
		for _, pair := range pairing.Pairs[leftCount:] {
			groups = append(groups, &Group{
				Key:    pair.Right.Key,
				KeyRaw: pair.Right.Raw,
				Sides:  []*Side{{Source: name, KeyRaw: pair.Right.Raw, rowIndex: pair.Right.Rows}},
			})
		}
	}
	return groups
}

// classifyAll classifies groups in shards on a bounded worker pool. Each
// worker writes only to its own groups.
func (r *reconciler) classifyAll(rctx *runContext, groups []*Group) {
	c := &classifier{
		sources:    rctx.sources,
		columns:    rctx.columns,
		timing:     r.options.timing,
		timingMax:  r.options.timingMax,
		comparator: rctx.comparator,
	}
	byName := make(map[string]Source, len(rctx.sources))
	for _, src := range rctx.sources {
		byName[src.Name] = src
	}

	run := func(batch []*Group) {
		for _, g := range batch {
			for _, side := range g.Sides {
				c.fillSide(side, byName[side.Source], side.rowIndex)
			}
			c.classify(g)
		}
	}

	if r.options.workers <= 1 || len(groups) <= constants.ShardSize {
		run(groups)
		return
	}

	var eg errgroup.Group
	eg.SetLimit(r.options.workers)
	for start := 0; start < len(groups); start += constants.ShardSize {
		batch := groups[start:min(start+constants.ShardSize, len(groups))]
		eg.Go(func() error {
			run(batch)
			return nil
		})
	}
	_ = eg.Wait()
}

// result builds the final result.
func (r *reconciler) result(rctx *runContext, groups []*Group) *Result {
	end := time.Now()
	return &Result{
		Summary: summarize(r.options, rctx.sources, rctx.columns, groups),
		Groups:  groups,
		Metadata: Metadata{
			RunID:     rctx.runID,
			StartTime: rctx.startTime,
			EndTime:   end,
			Duration:  end.Sub(rctx.startTime),
			Workers:   r.options.workers,
		},
	}
}
