package application

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/policy"
)

// ExitError ends a command with a specific exit code. Commands return it
// when the run itself succeeded but its outcome (a failing verdict,
// unmatched groups under --strict-exit) must fail the process.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Fail returns an ExitError with the policy-fail exit code.
func Fail(format string, args ...any) *ExitError {
	return &ExitError{Code: constants.ExitPolicyFail, Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps any command error to the process exit code.
func ExitCode(err error) int {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return policy.ExitCodeFor(err)
}

// usageError is a command-line usage error. It matches
// errors.ErrInvalidInput and deliberately hides its cause, so a wrapped
// parse error still exits with the usage code.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func (e *usageError) Is(target error) bool {
	return target == errors.ErrInvalidInput
}

// UsageError marks err as a command-line usage error (exit code 2).
func UsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{msg: err.Error()}
}

// Args wraps a positional argument validator so its failures are usage
// errors.
func Args(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return UsageError(fn(cmd, args))
	}
}
