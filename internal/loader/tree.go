package loader

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"

	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/fingerprint"
)

// treeDoc is the file form of a content tree:
//
//	calc: {iterative: true, max_iterations: 100, max_change: 0.001}
//	sheets:
//	  - index: 0
//	    name: Summary
//	    cells:
//	      A1: Revenue
//	      B7: {formula: "=SUM(B2:B6)", value: 200000, tags: [total]}
type treeDoc struct {
	Calc   calcDoc    `yaml:"calc"`
	Sheets []sheetDoc `yaml:"sheets"`
}

type calcDoc struct {
	Iterative     bool    `yaml:"iterative"`
	MaxIterations int     `yaml:"max_iterations"`
	MaxChange     float64 `yaml:"max_change"`
}

type sheetDoc struct {
	Index *int               `yaml:"index"`
	Name  string             `yaml:"name"`
	Cells map[string]cellDoc `yaml:"cells"`
}

// cellDoc accepts either a bare scalar (the value, or a formula when it
// starts with "=") or a mapping with value, formula, tags and style.
type cellDoc struct {
	Value   scalarDoc          `yaml:"value"`
	Formula string             `yaml:"formula"`
	Tags    []string           `yaml:"tags"`
	Style   *fingerprint.Style `yaml:"style"`
}

func (c *cellDoc) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if _, ok := raw.(map[string]any); !ok {
		if s, ok := raw.(string); ok && strings.HasPrefix(s, "=") {
			c.Formula = s
			return nil
		}
		return unmarshal(&c.Value)
	}
	type plain cellDoc
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*c = cellDoc(p)
	return nil
}

// scalarDoc is a cell value. Numbers keep their source text, so they are
// never rounded through float64.
type scalarDoc struct {
	value  any
	number string
}

func (s *scalarDoc) UnmarshalYAML(node ast.Node) error {
	switch n := node.(type) {
	case *ast.TagNode:
		return s.UnmarshalYAML(n.Value)
	case *ast.IntegerNode:
		s.value = n.Value
		return nil
	case *ast.FloatNode:
		s.number = strings.ReplaceAll(n.Token.Value, "_", "")
		s.value = n.Value
		return nil
	}
	return yaml.NodeToValue(node, &s.value)
}

// Value converts the scalar to a cell value.
func (s scalarDoc) Value() (fingerprint.Value, error) {
	if s.number != "" {
		if v, err := fingerprint.Decimal(s.number); err == nil {
			return v, nil
		}
	}
	return fingerprint.ValueOf(s.value)
}

// Tree loads a content tree from a YAML or JSON file.
func Tree(path string) (*fingerprint.ContentTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	tree, err := ReadTree(f)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.File = path
		}
		return nil, err
	}
	return tree, nil
}

// ReadTree decodes a content tree document. Sheets without an explicit
// index take their position in the document.
func ReadTree(r io.Reader) (*fingerprint.ContentTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO("read", "", err)
	}
	var doc treeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewParseError("tree", "", yaml.FormatError(err, false, false), err)
	}

	tree := &fingerprint.ContentTree{
		Calc: fingerprint.CalcSettings{
			Iterative:     doc.Calc.Iterative,
			MaxIterations: doc.Calc.MaxIterations,
			MaxChange:     doc.Calc.MaxChange,
		},
	}
	for i, sd := range doc.Sheets {
		sheet := fingerprint.Sheet{Index: i, Name: sd.Name, Cells: make(map[fingerprint.Address]fingerprint.Cell, len(sd.Cells))}
		if sd.Index != nil {
			sheet.Index = *sd.Index
		}
		refs := make([]string, 0, len(sd.Cells))
		for ref := range sd.Cells {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		spelled := make(map[fingerprint.Address]string, len(refs))
		for _, ref := range refs {
			cd := sd.Cells[ref]
			addr, err := fingerprint.ParseAddress(ref)
			if err != nil {
				return nil, errors.NewParseError("tree", "", fmt.Sprintf("sheet %q: %v", sd.Name, err), err)
			}
			if prev, ok := spelled[addr]; ok {
				return nil, errors.NewParseError("tree", "",
					fmt.Sprintf("sheet %q: cells %s and %s are both %s", sd.Name, prev, ref, addr), nil)
			}
			spelled[addr] = ref
			value, err := cd.Value.Value()
			if err != nil {
				return nil, errors.NewParseError("tree", "", fmt.Sprintf("sheet %q cell %s: %v", sd.Name, ref, err), err)
			}
			sheet.Cells[addr] = fingerprint.Cell{Value: value, Formula: cd.Formula, Tags: cd.Tags, Style: cd.Style}
		}
		tree.Sheets = append(tree.Sheets, sheet)
	}
	if err := tree.Validate(); err != nil {
		return nil, errors.NewParseError("tree", "", err.Error(), err)
	}
	return tree, nil
}
