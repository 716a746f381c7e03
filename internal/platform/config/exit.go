package config

import (
	"fmt"
	"os"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
)

// Exit statuses for CLI entry points.
const (
	ExitFailure = 1
	// ExitRejected means the input was read but failed verification.
	ExitRejected = 2
)

// Exitf writes a formatted error message to stderr and exits with
// ExitFailure.
func Exitf(format string, args ...any) {
	exit(ExitFailure, format, args...)
}

// ExitErr reports err under what and exits. Errors carrying a rule or
// integrity code exit with ExitRejected so scripts can tell a tampered or
// illegal match from an operational failure.
func ExitErr(what string, err error) {
	exit(ExitStatus(err), "%s: %v", what, err)
}

// ExitStatus maps err to the status ExitErr uses.
func ExitStatus(err error) int {
	code := apperrors.CodeOf(err)
	if code.Rejection() || code == apperrors.CodeIntegrity {
		return ExitRejected
	}
	return ExitFailure
}

func exit(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}
