// Package errors turns failures into user-facing messages with a cause, a fix
// and a stable exit code.
//
// Exit codes:
//   - ExitSuccess (0): run completed
//   - ExitSchema (1): invalid schema declaration or configuration
//   - ExitStore (2): the store rejected an operation the run depends on
//   - ExitUnavailable (3): the store stayed unreachable after retries
//   - ExitInput (4): bad command-line arguments
//   - ExitIndexFailures (5): non-fatal index failures under --strict
//   - ExitInternal (10): bugs
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/fatih/color"
)

const (
	ExitSuccess       = 0
	ExitSchema        = 1
	ExitStore         = 2
	ExitUnavailable   = 3
	ExitInput         = 4
	ExitIndexFailures = 5
	ExitInternal      = 10
)

// UserError is an error with enough context for an operator to act on it.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewSchemaError reports an invalid declaration or configuration.
func NewSchemaError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitSchema, Err: err}
}

// NewUnavailableError reports a store that could not be reached.
func NewUnavailableError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitUnavailable, Err: err}
}

// NewInputError creates an argument error. Input errors do not wrap.
func NewInputError(msg, cause, fix string) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitInput}
}

// NewIndexFailuresError reports a run whose non-fatal failures are escalated.
func NewIndexFailuresError(failures int, err error) *UserError {
	return &UserError{
		Message:  fmt.Sprintf("%d index action(s) failed", failures),
		Cause:    "strict mode treats non-fatal index failures as errors",
		Fix:      "Inspect the failures above, fix the declaration or the data, and re-run",
		ExitCode: ExitIndexFailures,
		Err:      err,
	}
}

// FromError classifies err. UserErrors pass through unchanged.
func FromError(err error) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}

	switch {
	case errors.Is(err, domain.ErrSchema):
		return NewSchemaError(
			"Invalid schema declaration",
			schemaCause(err),
			"Fix the declaration (restodb schema validates it without touching the store)",
			err,
		)
	case errors.Is(err, domain.ErrStoreUnavailable):
		return NewUnavailableError(
			"Store unavailable",
			"The store did not answer after all retries",
			"Check MONGODB_URI, network access and credentials, or raise --retries/--timeout",
			err,
		)
	case errors.Is(err, domain.ErrConnection):
		return NewUnavailableError(
			"Cannot reach the store",
			err.Error(),
			"Check MONGODB_URI and that the server is running",
			err,
		)
	case errors.Is(err, domain.ErrIndexConflict), errors.Is(err, domain.ErrInvalidSpec), errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrAlreadyExists):
		return &UserError{Message: "Store rejected the operation", Cause: err.Error(), ExitCode: ExitStore, Err: err}
	}
	return &UserError{
		Message:  "Unexpected error",
		Cause:    err.Error(),
		Fix:      "This is a bug, please report it with the command and its output",
		ExitCode: ExitInternal,
		Err:      err,
	}
}

// schemaCause lists every schema problem on its own line.
func schemaCause(err error) string {
	var lines []string
	collect(err, &lines)
	if len(lines) == 0 {
		return err.Error()
	}
	return strings.Join(lines, "\n       ")
}

func collect(err error, lines *[]string) {
	switch e := err.(type) {
	case *domain.SchemaError:
		*lines = append(*lines, e.Error())
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collect(inner, lines)
		}
	case interface{ Unwrap() error }:
		collect(e.Unwrap(), lines)
	}
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for a terminal. Colour honours NO_COLOR.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()
	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")
	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the machine-readable form of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{Error: e.Message, Cause: e.Cause, Fix: e.Fix, ExitCode: e.ExitCode}
}

// Write prints err to w and returns the exit code to use.
func Write(w io.Writer, err error, jsonOutput, noColor bool) int {
	ue := FromError(err)
	if ue == nil {
		return ExitSuccess
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(w, ue.Format(noColor))
	}
	return ue.ExitCode
}
