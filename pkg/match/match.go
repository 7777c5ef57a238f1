// Package match pairs rows across two datasets by normalized key.
//
// The matcher never guesses. Under the contains strategy a left key with
// more than one candidate, or a candidate claimed by more than one left
// key, is reported as ambiguous with every candidate listed and no pairing
// chosen. The result does not depend on candidate order.
package match

import (
	"fmt"
	"strings"

	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/keys"
)

// Entry is one normalized key on one side together with every row that
// carries it. Without aggregation Rows has exactly one element.
type Entry struct {
	Key  string `json:"key"`
	Raw  string `json:"raw"`
	Rows []int  `json:"rows"`
}

// Explain records why a non-exact pair was made, for audit.
type Explain struct {
	Mode     Strategy `json:"mode"`
	LeftRaw  string   `json:"left_key_raw"`
	LeftKey  string   `json:"left_key_norm"`
	RightRaw string   `json:"right_key_raw"`
	RightKey string   `json:"right_key_norm"`
}

// String describes the substring relationship.
func (e Explain) String() string {
	return fmt.Sprintf("%s: left %q (%q) in right %q (%q)", e.Mode, e.LeftRaw, e.LeftKey, e.RightRaw, e.RightKey)
}

// Candidate is a right key an ambiguous left key could have paired with.
type Candidate struct {
	Raw  string `json:"right_key_raw"`
	Key  string `json:"right_key_norm"`
	Rows []int  `json:"right_rows"`
}

// AmbiguityReason says why a group is ambiguous.
type AmbiguityReason string

// Ambiguity reasons.
const (
	// MultipleCandidates means the left key is contained in several right keys.
	MultipleCandidates AmbiguityReason = "multiple_candidates"
	// ContestedCandidate means the only candidate is also claimed by another left key.
	ContestedCandidate AmbiguityReason = "contested_candidate"
)

// Pair is one matcher outcome: a paired left and right entry, a one-sided
// entry, or an ambiguous left entry with its candidates.
type Pair struct {
	Left       *Entry
	Right      *Entry
	Explain    *Explain
	Ambiguous  bool
	Reason     AmbiguityReason
	Candidates []Candidate
}

// Paired reports whether both sides are present.
func (p Pair) Paired() bool {
	return p.Left != nil && p.Right != nil
}

// Pairing is the full matcher output. Every row of both inputs appears in
// exactly one pair; ambiguous candidates are references, the candidate rows
// themselves appear in right-only pairs.
type Pairing struct {
	Strategy Strategy
	Pairs    []Pair
}

// Ambiguous returns the ambiguous pairs.
func (p *Pairing) Ambiguous() []Pair {
	var out []Pair
	for _, pair := range p.Pairs {
		if pair.Ambiguous {
			out = append(out, pair)
		}
	}
	return out
}

// Match pairs left and right keys. Duplicate keys under OnDuplicateError
// fail before any pairing with an error listing every duplicate. Ambiguous
// groups under OnAmbiguousError return the complete pairing together with
// an AmbiguityError listing every ambiguous group.
func Match(left, right []keys.Key, opts Options) (*Pairing, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	leftEntries, leftDups := group(left, opts.LeftName)
	rightEntries, rightDups := group(right, opts.RightName)
	if opts.OnDuplicate == OnDuplicateError {
		if dups := append(leftDups, rightDups...); len(dups) > 0 {
			return nil, errors.NewDuplicateKeyError(dups)
		}
	}

	var pairing *Pairing
	switch opts.Strategy {
	case Contains:
		pairing = matchContains(leftEntries, rightEntries)
	default:
		pairing = matchExact(leftEntries, rightEntries)
	}

	if opts.OnAmbiguous == OnAmbiguousError {
		if amb := pairing.Ambiguous(); len(amb) > 0 {
			return pairing, ambiguityError(amb, opts.RightName)
		}
	}
	return pairing, nil
}

// group folds keys into entries in first-appearance order and reports
// every key seen more than once.
func group(ks []keys.Key, side string) ([]*Entry, []errors.DuplicateKey) {
	index := make(map[string]*Entry, len(ks))
	entries := make([]*Entry, 0, len(ks))
	for _, k := range ks {
		if e, ok := index[k.Normalized]; ok {
			e.Rows = append(e.Rows, k.Row)
			continue
		}
		e := &Entry{Key: k.Normalized, Raw: k.Raw, Rows: []int{k.Row}}
		index[k.Normalized] = e
		entries = append(entries, e)
	}
	var dups []errors.DuplicateKey
	for _, e := range entries {
		if len(e.Rows) > 1 {
			dups = append(dups, errors.DuplicateKey{Side: side, Key: e.Key, Count: len(e.Rows)})
		}
	}
	return entries, dups
}

// matchable reports whether an entry may pair at all. Blank keys never pair.
func matchable(e *Entry) bool {
	return e.Key != ""
}

func matchExact(left, right []*Entry) *Pairing {
	p := &Pairing{Strategy: Exact, Pairs: make([]Pair, 0, len(left)+len(right))}
	index := make(map[string]*Entry, len(right))
	for _, r := range right {
		if matchable(r) {
			index[r.Key] = r
		}
	}
	used := make(map[*Entry]bool, len(right))
	for _, l := range left {
		r, ok := index[l.Key]
		if !ok || !matchable(l) {
			p.Pairs = append(p.Pairs, Pair{Left: l})
			continue
		}
		used[r] = true
		p.Pairs = append(p.Pairs, Pair{Left: l, Right: r})
	}
	return appendUnused(p, right, used)
}

func matchContains(left, right []*Entry) *Pairing {
	p := &Pairing{Strategy: Contains, Pairs: make([]Pair, 0, len(left)+len(right))}

	candidates := make([][]*Entry, len(left))
	claims := make(map[*Entry]int, len(right))
	for i, l := range left {
		if !matchable(l) {
			continue
		}
		for _, r := range right {
			if matchable(r) && strings.Contains(r.Key, l.Key) {
				candidates[i] = append(candidates[i], r)
				claims[r]++
			}
		}
	}

	used := make(map[*Entry]bool, len(right))
	for i, l := range left {
		cands := candidates[i]
		switch {
		case len(cands) == 0:
			p.Pairs = append(p.Pairs, Pair{Left: l})
		case len(cands) == 1 && claims[cands[0]] == 1:
			r := cands[0]
			used[r] = true
			p.Pairs = append(p.Pairs, Pair{
				Left:  l,
				Right: r,
				Explain: &Explain{
					Mode:     Contains,
					LeftRaw:  l.Raw,
					LeftKey:  l.Key,
					RightRaw: r.Raw,
					RightKey: r.Key,
				},
			})
		default:
			reason := MultipleCandidates
			if len(cands) == 1 {
				reason = ContestedCandidate
			}
			list := make([]Candidate, len(cands))
			for j, r := range cands {
				list[j] = Candidate{Raw: r.Raw, Key: r.Key, Rows: append([]int(nil), r.Rows...)}
			}
			p.Pairs = append(p.Pairs, Pair{Left: l, Ambiguous: true, Reason: reason, Candidates: list})
		}
	}
	return appendUnused(p, right, used)
}

func appendUnused(p *Pairing, right []*Entry, used map[*Entry]bool) *Pairing {
	for _, r := range right {
		if !used[r] {
			p.Pairs = append(p.Pairs, Pair{Right: r})
		}
	}
	return p
}

func ambiguityError(amb []Pair, source string) *errors.AmbiguityError {
	err := &errors.AmbiguityError{Groups: make([]errors.AmbiguousKey, 0, len(amb))}
	for _, pair := range amb {
		cands := make([]string, len(pair.Candidates))
		for i, c := range pair.Candidates {
			cands[i] = c.Raw
		}
		err.Groups = append(err.Groups, errors.AmbiguousKey{Source: source, Key: pair.Left.Raw, Candidates: cands})
	}
	return err
}
