package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/keys"
	"github.com/agentstation/tally/pkg/match"
	"github.com/agentstation/tally/pkg/policy"
	"github.com/agentstation/tally/pkg/reconcile"
)

// Manifest describes an N-way reconciliation run. The first source is the
// primary that every other source is matched against.
//
//	name: month-end
//	match: contains
//	key_transform: digits
//	tolerance: 0.01
//	compare: [amount]
//	sources:
//	  - {name: ledger, path: ledger.csv, key: ref}
//	  - name: bank
//	    path: bank.csv
//	    key: reference
//	    columns: [{name: amount, column: Amt}]
//	policy:
//	  buckets: {one_sided: fail, amount_mismatch: fail}
//	assertions:
//	  - {kind: sum, location: amount, expected: "1500.00", tolerance: 0.01}
type Manifest struct {
	Name         string   `mapstructure:"name" validate:"omitempty,max=128"`
	Match        string   `mapstructure:"match" validate:"omitempty,oneof=exact contains"`
	KeyTransform string   `mapstructure:"key_transform" validate:"omitempty,oneof=none trim digits alnum"`
	Tolerance    float64  `mapstructure:"tolerance" validate:"gte=0"`
	OnAmbiguous  string   `mapstructure:"on_ambiguous" validate:"omitempty,oneof=error report"`
	OnDuplicate  string   `mapstructure:"on_duplicate" validate:"omitempty,oneof=error aggregate"`
	Compare      []string `mapstructure:"compare" validate:"dive,required"`
	Timing       *Timing  `mapstructure:"timing"`
	Workers      int      `mapstructure:"workers" validate:"gte=0"`

	Sources []SourceSpec `mapstructure:"sources" validate:"required,min=2,unique=Name,dive"`

	Policy     policy.Config      `mapstructure:"policy"`
	Assertions []policy.Assertion `mapstructure:"assertions"`

	// Tree is an optional content tree that cell assertions read and whose
	// fingerprint is reported with the run.
	Tree string `mapstructure:"tree"`

	// Path is the manifest file; relative source paths resolve against its
	// directory.
	Path string `mapstructure:"-"`
}

// Timing configures the timing column of a manifest.
type Timing struct {
	Column    string  `mapstructure:"column" validate:"required"`
	MaxOffset float64 `mapstructure:"max_offset" validate:"gte=0"`
}

// SourceSpec is one dataset of a manifest.
type SourceSpec struct {
	Name      string          `mapstructure:"name" validate:"required,sourcename"`
	Path      string          `mapstructure:"path" validate:"required"`
	Key       string          `mapstructure:"key" validate:"required"`
	Format    string          `mapstructure:"format" validate:"omitempty,oneof=csv tsv json"`
	Delimiter string          `mapstructure:"delimiter" validate:"omitempty,len=1"`
	Columns   []ColumnMapping `mapstructure:"columns" validate:"unique=Name,dive"`
}

// ColumnMapping names this source's column for a compared column. Mappings
// are a list rather than a map because config keys are case-folded.
type ColumnMapping struct {
	Name   string `mapstructure:"name" validate:"required"`
	Column string `mapstructure:"column" validate:"required"`
}

// ColumnMap returns the mappings as reconcile.Source expects them.
func (s SourceSpec) ColumnMap() map[string]string {
	if len(s.Columns) == 0 {
		return nil
	}
	out := make(map[string]string, len(s.Columns))
	for _, c := range s.Columns {
		out[c.Name] = c.Column
	}
	return out
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Source names become bucket names (ledger_only) and policy keys, so
	// they are lower-case identifiers without underscores.
	_ = validate.RegisterValidation("sourcename", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		for i := 0; i < len(name); i++ {
			c := name[i]
			if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
				return false
			}
		}
		return name != ""
	})
}

// LoadManifest reads and validates a manifest. Values may be overridden
// from the environment with the TALLY_RECON_ prefix, e.g.
// TALLY_RECON_TOLERANCE=0.05.
func LoadManifest(path string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TALLY_RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"name", "match", "key_transform", "tolerance", "on_ambiguous", "on_duplicate", "workers"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.WrapIO("read", path, err)
		}
		return nil, errors.NewParseError("manifest", path, err.Error(), err)
	}

	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, errors.NewParseError("manifest", path, err.Error(), err)
	}
	m.Path = path
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest and normalizes its policy.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return manifestError(err)
	}
	if err := m.Policy.Validate(); err != nil {
		return err
	}
	for i, a := range m.Assertions {
		if err := a.Validate(); err != nil {
			return errors.NewConfigError(fmt.Sprintf("manifest.assertions[%d]", i), err.Error(), err)
		}
		if a.Kind == policy.CellAssertion && m.Tree == "" {
			return errors.NewConfigError(fmt.Sprintf("manifest.assertions[%d]", i), "cell assertions need a tree", nil)
		}
	}
	return nil
}

// manifestError flattens validator errors into one ConfigError naming
// every offending field.
func manifestError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.NewConfigError("manifest", err.Error(), err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Manifest.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return errors.NewConfigError("manifest", strings.Join(msgs, "; "), err)
}

// SourcePath resolves a source path against the manifest's directory.
func (m *Manifest) SourcePath(s SourceSpec) string {
	return m.resolve(s.Path)
}

func (m *Manifest) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || m.Path == "" {
		return path
	}
	return filepath.Join(filepath.Dir(m.Path), path)
}

// TreePath resolves the tree path against the manifest's directory.
func (m *Manifest) TreePath() string {
	return m.resolve(m.Tree)
}

// Options converts the manifest into reconciler options.
func (m *Manifest) Options() ([]reconcile.Option, error) {
	var opts []reconcile.Option
	if m.Match != "" {
		opts = append(opts, reconcile.WithStrategy(match.Strategy(m.Match)))
	}
	if m.KeyTransform != "" {
		t, err := keys.ParseTransform(m.KeyTransform)
		if err != nil {
			return nil, err
		}
		opts = append(opts, reconcile.WithKeyTransform(t))
	}
	if m.OnAmbiguous != "" {
		opts = append(opts, reconcile.WithOnAmbiguous(match.AmbiguityPolicy(m.OnAmbiguous)))
	}
	if m.OnDuplicate != "" {
		opts = append(opts, reconcile.WithOnDuplicate(match.DuplicatePolicy(m.OnDuplicate)))
	}
	opts = append(opts, reconcile.WithTolerance(m.Tolerance))
	if len(m.Compare) > 0 {
		opts = append(opts, reconcile.WithCompare(m.Compare...))
	}
	if m.Timing != nil {
		opts = append(opts, reconcile.WithTiming(m.Timing.Column, m.Timing.MaxOffset))
	}
	if m.Workers > 0 {
		opts = append(opts, reconcile.WithWorkers(m.Workers))
	}
	return opts, nil
}
