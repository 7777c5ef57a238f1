// Package loader reads datasets and content trees from files.
//
// Datasets come from CSV, TSV or JSON (an array of objects). Content trees
// come from YAML or JSON documents describing sheets and cells. Every
// failure is an IOError (file could not be read) or a ParseError (file
// could not be understood), which the CLI maps to exit code 5.
package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/tally/pkg/dataset"
	"github.com/agentstation/tally/pkg/errors"
)

// Format is a dataset file format.
type Format string

// Formats.
const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
)

// FormatOf infers a dataset format from a file extension, defaulting to CSV.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return FormatTSV
	case ".json":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// options configures dataset loading.
type options struct {
	name   string
	format Format
	comma  rune
}

// Option configures Dataset.
type Option func(*options)

// WithName overrides the dataset name (default: the file's base name
// without extension).
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithFormat overrides format detection.
func WithFormat(f Format) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithDelimiter sets the CSV field delimiter.
func WithDelimiter(r rune) Option {
	return func(o *options) {
		o.comma = r
	}
}

// Dataset loads a dataset file.
func Dataset(path string, opts ...Option) (*dataset.Dataset, error) {
	o := &options{
		name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		format: FormatOf(path),
	}
	for _, opt := range opts {
		opt(o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	var ds *dataset.Dataset
	switch o.format {
	case FormatJSON:
		ds, err = ReadJSON(f, o.name)
	case FormatTSV:
		ds, err = ReadCSV(f, o.name, '\t')
	default:
		comma := o.comma
		if comma == 0 {
			comma = ','
		}
		ds, err = ReadCSV(f, o.name, comma)
	}
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.File == "" {
			pe.File = path
		}
		return nil, err
	}
	return ds, nil
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a delimited dataset. The first record is the header; rows
// may be ragged, missing trailing cells read as empty.
func ReadCSV(r io.Reader, name string, comma rune) (*dataset.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO("read", name, err)
	}
	data = bytes.TrimPrefix(data, bom)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewParseError("csv", "", "missing header row", nil)
	}
	if err != nil {
		return nil, csvError(err)
	}
	columns, err := headerColumns(header)
	if err != nil {
		return nil, err
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		if len(rec) > len(columns) {
			line, _ := cr.FieldPos(0)
			return nil, &errors.ParseError{
				Format:  "csv",
				Line:    line,
				Message: fmt.Sprintf("record has %d fields, header has %d", len(rec), len(columns)),
			}
		}
		records = append(records, rec)
	}
	return dataset.New(name, columns, records), nil
}

func csvError(err error) error {
	pe := &errors.ParseError{Format: "csv", Message: err.Error(), Err: err}
	var ce *csv.ParseError
	if errors.As(err, &ce) {
		pe.Line = ce.Line
		pe.Column = ce.Column
		pe.Message = ce.Err.Error()
	}
	return pe
}

func headerColumns(header []string) ([]string, error) {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = dataset.ColumnLetter(i)
		}
		if seen[h] {
			return nil, errors.NewParseError("csv", "", fmt.Sprintf("duplicate header %q", h), nil)
		}
		seen[h] = true
		columns[i] = h
	}
	return columns, nil
}

// ReadJSON reads a dataset from a JSON array of flat objects. Columns are
// declared in first-seen key order across all objects.
func ReadJSON(r io.Reader, name string) (*dataset.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO("read", name, err)
	}
	var objects []yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(data, &objects, yaml.UseOrderedMap()); err != nil {
		return nil, errors.NewParseError("json", "", "expected an array of objects", err)
	}

	var columns []string
	index := make(map[string]int)
	for _, obj := range objects {
		for _, item := range obj {
			k := fmt.Sprint(item.Key)
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
	}

	records := make([][]string, len(objects))
	for i, obj := range objects {
		rec := make([]string, len(columns))
		for _, item := range obj {
			s, err := scalar(item.Value)
			if err != nil {
				return nil, errors.NewParseError("json", "", fmt.Sprintf("record %d field %v: %v", i, item.Key, err), err)
			}
			rec[index[fmt.Sprint(item.Key)]] = s
		}
		records[i] = rec
	}
	return dataset.New(name, columns, records), nil
}

// scalar renders a decoded JSON scalar as raw cell text.
func scalar(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	default:
		return "", fmt.Errorf("nested value of type %T", v)
	}
}
