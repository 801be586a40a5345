package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tkt-dev/tkt/internal/tkterr"
)

// ExitError represents a command-level error with a specific exit code,
// for failures outside the domain taxonomy (unusable workspace, bad
// paths).
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the process exit code from an error. Explicit
// ExitErrors take their own code; domain errors map through the taxonomy;
// anything else is a generic failure.
func GetExitCode(err error) int {
	if err == nil {
		return tkterr.ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return tkterr.ExitCode(err)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON envelope for CLI output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure inside a JSON response.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// JSON reports whether the formatter emits JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a success payload. In text mode, render produces the
// human-readable form; a nil render falls back to fmt printing.
func (f *OutputFormatter) Success(data any, render func(w io.Writer)) error {
	if f.JSON() {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	if render != nil {
		render(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Fail outputs an error in the configured format, then returns err
// unchanged so the caller propagates the exit code.
func (f *OutputFormatter) Fail(err error) error {
	code := "ERROR"
	var id string
	var terr *tkterr.Error
	if errors.As(err, &terr) {
		code = string(terr.Code)
		id = terr.ID
	}
	if f.JSON() {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		_ = enc.Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error(), ID: id},
		})
		return err
	}
	fmt.Fprintf(f.errWriter(), "Error [%s]: %v\n", code, err)
	return err
}

// Warn prints a non-fatal warning to the diagnostic writer.
func (f *OutputFormatter) Warn(format string, args ...any) {
	fmt.Fprintf(f.errWriter(), "warning: "+format+"\n", args...)
}

// VerboseLog outputs a message only when verbose mode is enabled. When the
// format is JSON, diagnostics go to ErrWriter so JSON output stays clean.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
