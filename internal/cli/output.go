package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fieldmaps/webmapctl/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (unverified save, failed layers)
	ExitCommandError = 2 // Usage or configuration error
)

// Error codes carried in JSON responses.
const (
	ErrCodeUsage     = "E001" // bad flags or arguments
	ErrCodeConfig    = "E002" // configuration file errors
	ErrCodeOperation = "E101" // a mutation failed or could not be verified
	ErrCodePartial   = "E102" // some web maps or layers failed
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the stable JSON envelope for command output.
type CLIResponse struct {
	Status  string     `json:"status"` // "ok" or "error"
	Command string     `json:"command"`
	Data    any        `json:"data,omitempty"`
	Errors  []CLIError `json:"errors,omitempty"`
}

// CLIError is one failure inside a response.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Item    string `json:"item,omitempty"` // web map id for batch failures
}

// writeJSON writes a response envelope as indented JSON.
func writeJSON(w io.Writer, resp CLIResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// sortedKeys returns a map's keys in stable order for text output.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// dryRunSuffix marks text-mode headers for simulated runs.
func dryRunSuffix(dryRun bool) string {
	if dryRun {
		return " (dry run)"
	}
	return ""
}

// printFilterResult renders one per-layer result in text mode.
func printFilterResult(w io.Writer, res *engine.FilterResult) {
	fmt.Fprintf(w, "  updated %d, skipped %d, errors %d\n",
		len(res.Updated), len(res.Skipped), len(res.Errors))
	for _, address := range res.Updated {
		fmt.Fprintf(w, "    updated %s\n", address)
	}
	for _, address := range res.Skipped {
		fmt.Fprintf(w, "    skipped %s\n", address)
	}
	for _, address := range sortedKeys(res.Errors) {
		fmt.Fprintf(w, "    error   %s: %s\n", address, res.Errors[address])
	}
}
