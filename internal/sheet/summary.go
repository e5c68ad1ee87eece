package sheet

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
)

// SampleRows is the number of leading rows included in a summary.
const SampleRows = 5

// Summarize renders t for the AI prompt: shape, column names, the first rows
// and a per-column description.
func Summarize(t *Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File analysis:\n")
	fmt.Fprintf(&b, "- Rows: %d\n", len(t.Rows))
	fmt.Fprintf(&b, "- Columns: %d\n", len(t.Header))
	fmt.Fprintf(&b, "- Column names: %s\n", strings.Join(t.Header, ", "))

	if len(t.Header) == 0 {
		return b.String()
	}

	n := min(SampleRows, len(t.Rows))
	fmt.Fprintf(&b, "\nSample data (first %d rows):\n", n)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	for _, row := range t.Rows[:n] {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()

	fmt.Fprintf(&b, "\nColumn description:\n")
	for i, col := range t.Header {
		fmt.Fprintf(&b, "- %s: %s\n", col, describe(t.Column(i)))
	}
	return b.String()
}

func describe(values []string) string {
	var (
		count  int
		unique = make(map[string]struct{})
		nums   []float64
	)
	for _, v := range values {
		if isEmpty(v) {
			continue
		}
		count++
		unique[v] = struct{}{}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			nums = append(nums, f)
		}
	}

	s := fmt.Sprintf("count=%d empty=%d unique=%d", count, len(values)-count, len(unique))
	if count == 0 || len(nums) != count {
		return s
	}

	lo, hi, sum := nums[0], nums[0], 0.0
	for _, f := range nums {
		lo = min(lo, f)
		hi = max(hi, f)
		sum += f
	}
	return s + fmt.Sprintf(" min=%g max=%g mean=%.2f", lo, hi, sum/float64(len(nums)))
}
