package sheet

import (
	"fmt"
	"strings"
)

// OpType names an edit operation.
type OpType string

// Edit operations suggested by Analyze and accepted by Apply.
const (
	OpRenameColumn     OpType = "rename_column"
	OpFillNulls        OpType = "fill_nulls"
	OpStandardizeDates OpType = "standardize_dates"
)

// DefaultFillValue replaces empty cells when a fill_nulls operation names no value.
const DefaultFillValue = "0"

// Operation is one suggested or requested edit. Fields not used by Type are empty.
type Operation struct {
	Type    OpType `json:"type"`
	Column  string `json:"column"`
	NewName string `json:"new_name,omitempty"`
	Value   string `json:"value,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// String describes the edit in a sentence fragment.
func (op Operation) String() string {
	switch op.Type {
	case OpRenameColumn:
		return fmt.Sprintf("rename column '%s' to '%s'", op.Column, op.NewName)
	case OpFillNulls:
		value := op.Value
		if value == "" {
			value = DefaultFillValue
		}
		if op.Count > 0 {
			return fmt.Sprintf("fill %d empty cells in '%s' with '%s'", op.Count, op.Column, value)
		}
		return fmt.Sprintf("fill empty cells in '%s' with '%s'", op.Column, value)
	case OpStandardizeDates:
		return fmt.Sprintf("standardize dates in '%s' to %s", op.Column, DateLayout)
	default:
		return fmt.Sprintf("%s on '%s'", op.Type, op.Column)
	}
}

// Analysis is the result of a data-quality check.
type Analysis struct {
	Issues      []string    `json:"issues"`
	Suggestions []Operation `json:"suggestions"`
	NeedsAction bool        `json:"needs_action"`
	RowCount    int         `json:"row_count"`
	ColumnCount int         `json:"column_count"`
}

// dateSampleSize bounds how many values are inspected to call a date column populated.
const dateSampleSize = 10

// Analyze checks t for badly formatted column names, empty cells and
// date columns that may mix formats.
func Analyze(t *Table) Analysis {
	a := Analysis{RowCount: len(t.Rows), ColumnCount: len(t.Header)}

	for _, col := range t.Header {
		if strings.Contains(col, " ") || strings.TrimSpace(col) != col {
			a.Issues = append(a.Issues, fmt.Sprintf("Column '%s' has spaces or inconsistent formatting", col))
			a.Suggestions = append(a.Suggestions, Operation{
				Type:    OpRenameColumn,
				Column:  col,
				NewName: strings.ReplaceAll(strings.TrimSpace(col), " ", "_"),
			})
		}
	}

	for i, col := range t.Header {
		if n := countEmpty(t.Column(i)); n > 0 {
			a.Issues = append(a.Issues, fmt.Sprintf("Column '%s' has %d null values", col, n))
			a.Suggestions = append(a.Suggestions, Operation{Type: OpFillNulls, Column: col, Count: n})
		}
	}

	for i, col := range t.Header {
		if !looksLikeDateColumn(col) || !hasValues(t.Column(i), dateSampleSize) {
			continue
		}
		a.Issues = append(a.Issues, fmt.Sprintf("Date column '%s' may have inconsistent formatting", col))
		a.Suggestions = append(a.Suggestions, Operation{Type: OpStandardizeDates, Column: col})
	}

	a.NeedsAction = len(a.Issues) > 0
	return a
}

func looksLikeDateColumn(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "date") || strings.Contains(lower, "fecha")
}

func isEmpty(v string) bool {
	return strings.TrimSpace(v) == ""
}

func countEmpty(values []string) int {
	n := 0
	for _, v := range values {
		if isEmpty(v) {
			n++
		}
	}
	return n
}

// hasValues reports whether any of the first limit non-empty values exist.
func hasValues(values []string, limit int) bool {
	seen := 0
	for _, v := range values {
		if isEmpty(v) {
			continue
		}
		seen++
		if seen >= limit {
			break
		}
	}
	return seen > 0
}
