package cmd

import (
	"errors"
	"fmt"

	"github.com/josephgoksu/deepagent/internal/apperr"
)

// formatError turns err into a one-line message for the terminal. Domain
// errors print as-is. Storage errors hide the driver detail unless verbose.
func formatError(err error, verbose bool) string {
	var repoErr *apperr.RepositoryError
	switch {
	case verbose:
		return fmt.Sprintf("Error: %v", err)
	case errors.As(err, &repoErr):
		return fmt.Sprintf("Error: storage failure during %s (rerun with --verbose for details)", repoErr.Op)
	case apperr.KindOf(err) != "":
		return fmt.Sprintf("%s: %v", kindLabel(apperr.KindOf(err)), err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

func kindLabel(k apperr.Kind) string {
	switch k {
	case apperr.KindValidation:
		return "Invalid input"
	case apperr.KindInvalidState:
		return "Not allowed"
	case apperr.KindConflict:
		return "Conflict"
	case apperr.KindNotFound:
		return "Not found"
	default:
		return "Error"
	}
}
