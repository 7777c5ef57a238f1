package reconcile

import "strings"

// Bucket is the classification outcome of a group.
type Bucket string

// Fixed buckets. One-sided buckets are built with OnlyBucket.
const (
	Matched        Bucket = "matched"
	AmountMismatch Bucket = "amount_mismatch"
	TimingMismatch Bucket = "timing_mismatch"
	Ambiguous      Bucket = "ambiguous"
)

const onlySuffix = "_only"

// OnlyBucket names the one-sided bucket for the sources holding a key,
// e.g. left_only, right_only, or processor_ledger_only in N-way runs.
func OnlyBucket(sources ...string) Bucket {
	return Bucket(strings.Join(sources, "_") + onlySuffix)
}

// OneSided reports whether b is a presence bucket (some source lacks the key).
func (b Bucket) OneSided() bool {
	return strings.HasSuffix(string(b), onlySuffix)
}

// String returns the bucket name.
func (b Bucket) String() string {
	return string(b)
}

// severity orders buckets for the N-way fold; higher wins.
func (b Bucket) severity() int {
	switch b {
	case Ambiguous:
		return 5
	case AmountMismatch:
		return 4
	case TimingMismatch:
		return 3
	case Matched:
		return 1
	default:
		if b.OneSided() {
			return 2
		}
		return 0
	}
}

// worse returns the more severe of a and b.
func worse(a, b Bucket) Bucket {
	if b.severity() > a.severity() {
		return b
	}
	return a
}
