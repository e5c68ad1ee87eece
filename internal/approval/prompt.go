package approval

import (
	"fmt"
	"strings"
)

// MaxPromptIssues is how many issues a prompt lists before summarizing the rest.
const MaxPromptIssues = 5

// FormatPrompt renders the chat message asking the human to approve fixes for issues.
func FormatPrompt(id string, issues []string) string {
	var b strings.Builder
	b.WriteString("📊 *File analysis complete*\n\n")
	b.WriteString("*Issues found:*\n")

	for i, issue := range issues {
		if i == MaxPromptIssues {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, issue)
	}
	if extra := len(issues) - MaxPromptIssues; extra > 0 {
		fmt.Fprintf(&b, "... and %d more\n", extra)
	}

	b.WriteString("\nShould I fix these issues automatically?\n")
	fmt.Fprintf(&b, "\n_ID: %s_", id)
	return b.String()
}
