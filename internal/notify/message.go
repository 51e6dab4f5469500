package notify

import (
	"fmt"
	"strings"
	"time"
)

// FormatSuccessMessage creates a success notification body.
func FormatSuccessMessage(summary *RunSummary) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Fetched: %d awards\n", summary.Fetched))
	sb.WriteString(fmt.Sprintf("New: %d\n", summary.Merged))
	sb.WriteString(fmt.Sprintf("Known total: %d\n", summary.Awards))
	sb.WriteString(fmt.Sprintf("Duration: %s", summary.Duration.Round(time.Second)))

	return sb.String()
}

// FormatFailureMessage creates a failure notification body.
func FormatFailureMessage(summary *RunSummary, err error) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Fetched: %d awards\n", summary.Fetched))
	sb.WriteString(fmt.Sprintf("New: %d\n", summary.Merged))
	sb.WriteString(fmt.Sprintf("Duration: %s", summary.Duration.Round(time.Second)))

	if err != nil {
		sb.WriteString(fmt.Sprintf("\n\nError: %v", err))
	}

	// Include first 3 error messages if available
	if len(summary.Errors) > 0 {
		sb.WriteString("\n\nErrors:\n")
		limit := 3
		if len(summary.Errors) < limit {
			limit = len(summary.Errors)
		}
		for i := 0; i < limit; i++ {
			sb.WriteString(fmt.Sprintf("- %s\n", summary.Errors[i]))
		}
		if len(summary.Errors) > 3 {
			sb.WriteString(fmt.Sprintf("... and %d more errors", len(summary.Errors)-3))
		}
	}

	return sb.String()
}
