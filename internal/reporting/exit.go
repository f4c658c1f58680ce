package reporting

import "github.com/codewithboateng/pylift/internal/ir"

// Process exit statuses.
const (
	ExitClean    = 0
	ExitFindings = 1
	ExitConfig   = 2
	ExitFailures = 3
)

// ExitCode is ExitFindings when any error-severity diagnostic exists,
// ExitFailures when units failed but nothing reached error, else ExitClean.
func ExitCode(ds []ir.Diagnostic, failures []ir.Failure) int {
	if top, ok := ir.MaxSeverity(ds); ok && top == ir.SevError {
		return ExitFindings
	}
	if len(failures) > 0 {
		return ExitFailures
	}
	return ExitClean
}
