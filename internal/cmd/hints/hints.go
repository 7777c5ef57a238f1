// Package hints provides actionable user guidance for failed runs.
package hints

import (
	"fmt"
	"strings"

	"github.com/agentstation/tally/pkg/errors"
)

// Hint represents actionable user guidance.
type Hint struct {
	Message string // Human-readable guidance message
	Command string // Optional flag or command to try
}

// New creates a new hint with the given message.
func New(message string) *Hint {
	return &Hint{Message: message}
}

// WithCommand adds a command to the hint.
func (h *Hint) WithCommand(command string) *Hint {
	h.Command = command
	return h
}

// String returns a string representation of the hint.
func (h *Hint) String() string {
	s := "hint: " + h.Message
	if h.Command != "" {
		s += "\n      try: " + h.Command
	}
	return s
}

// ForError returns hints for the error a run ended with, most relevant
// first. Errors without known remedies get none.
func ForError(err error) []*Hint {
	var out []*Hint
	var dup *errors.DuplicateKeyError
	var amb *errors.AmbiguityError
	var pe *errors.ParseError

	switch {
	case err == nil:
		return nil
	case errors.As(err, &dup):
		out = append(out,
			New("keys repeat within a source; sum their rows into one group instead of failing").
				WithCommand("--on-duplicate aggregate"),
			New("or compare keys verbatim so that formatting differences stop colliding").
				WithCommand("--key-transform none"),
		)
	case errors.As(err, &amb):
		out = append(out,
			New(fmt.Sprintf("%d keys matched more than one candidate; keep them as an ambiguous bucket", len(amb.Groups))).
				WithCommand("--on-ambiguous report --save-ambiguous ambiguous.csv"),
		)
	case errors.As(err, &pe):
		switch pe.Format {
		case "csv":
			out = append(out, New("check the delimiter and quoting; TSV files need a .tsv extension or format: tsv"))
		case "json", "manifest", "tree":
			out = append(out, New("the file must be valid YAML or JSON"))
		}
	case errors.IsNotFound(err):
		out = append(out, New("nothing is stored under that name yet; the first check creates the baseline"))
	case errors.Is(err, errors.ErrInvalidInput):
		if strings.Contains(err.Error(), "column") {
			out = append(out, New("columns can be named, given as spreadsheet letters (A, B) or as 1-based positions"))
		}
		out = append(out, New("see the command's usage").WithCommand("tally <command> --help"))
	}
	return out
}
