package approval

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPrompt(t *testing.T) {
	tests := []struct {
		name        string
		issues      []string
		contains    []string
		notContains []string
	}{
		{
			name:        "two issues",
			issues:      []string{"Column 'a b' has spaces", "Column 'x' has 3 null values"},
			contains:    []string{"1. Column 'a b' has spaces\n", "2. Column 'x' has 3 null values\n", "_ID: abc123_"},
			notContains: []string{"more"},
		},
		{
			name:        "exactly five",
			issues:      []string{"i1", "i2", "i3", "i4", "i5"},
			contains:    []string{"5. i5\n"},
			notContains: []string{"more"},
		},
		{
			name:        "seven issues are truncated",
			issues:      []string{"i1", "i2", "i3", "i4", "i5", "i6", "i7"},
			contains:    []string{"5. i5\n", "... and 2 more\n"},
			notContains: []string{"6. i6"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatPrompt("abc123", tt.issues)
			assert.True(t, strings.HasPrefix(out, "📊 *File analysis complete*"))
			assert.Contains(t, out, "Should I fix these issues automatically?")
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestFormatPrompt_EndsWithID(t *testing.T) {
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	out := FormatPrompt(id, nil)
	assert.True(t, strings.HasSuffix(out, fmt.Sprintf("_ID: %s_", id)))
}
