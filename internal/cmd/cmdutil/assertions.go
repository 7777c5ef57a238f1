package cmdutil

import (
	"github.com/agentstation/tally/pkg/dataset"
	"github.com/agentstation/tally/pkg/fingerprint"
	"github.com/agentstation/tally/pkg/policy"
)

// CellValues evaluates the cells that cell assertions read. Missing cells
// are left out so the assertion reports them.
func CellValues(tree *fingerprint.ContentTree, assertions []policy.Assertion) map[string]string {
	values := make(map[string]string)
	for _, a := range assertions {
		if a.Kind != policy.CellAssertion {
			continue
		}
		if v, err := tree.Lookup(a.Location); err == nil {
			values[a.Location] = v.String()
		}
	}
	return values
}

// SumColumns collects the raw values of every column a sum assertion
// reads. Unknown columns are left out.
func SumColumns(ds *dataset.Dataset, assertions []policy.Assertion) map[string][]string {
	columns := make(map[string][]string)
	for _, a := range assertions {
		if a.Kind != policy.SumAssertion {
			continue
		}
		name, err := ds.ResolveColumn(a.Location)
		if err != nil {
			continue
		}
		values := make([]string, len(ds.Rows))
		for i, row := range ds.Rows {
			values[i] = row.Raw(name)
		}
		columns[a.Location] = values
	}
	return columns
}
