package differ

// Option is a functional option for configuring Differ
type Option func(*differ)

// WithIgnoredColumns sets columns to ignore during comparison
func WithIgnoredColumns(columns ...string) Option {
	return func(d *differ) {
		for _, column := range columns {
			d.ignoreColumns[column] = true
		}
	}
}

// WithCaseInsensitive matches column names regardless of case
func WithCaseInsensitive(enabled bool) Option {
	return func(d *differ) {
		d.caseInsensitive = enabled
	}
}

// WithTotals enables/disables comparison of numeric column totals
func WithTotals(enabled bool) Option {
	return func(d *differ) {
		d.totals = enabled
	}
}
