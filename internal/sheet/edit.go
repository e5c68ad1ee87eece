package sheet

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the format standardized dates are written in.
const DateLayout = "2006-01-02"

// dayFirstLayouts are tried when dateparse rejects a value, which happens for
// day-first dates with a day above 12.
var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
}

// ErrUnknownColumn is returned when an operation names a column the table lacks.
var ErrUnknownColumn = errors.New("unknown column")

func (op Operation) apply(t *Table) error {
	idx := t.ColumnIndex(op.Column)
	if idx < 0 {
		return fmt.Errorf("%w %q", ErrUnknownColumn, op.Column)
	}

	switch op.Type {
	case OpRenameColumn:
		if strings.TrimSpace(op.NewName) == "" {
			return errors.New("rename_column needs a new_name")
		}
		t.Header[idx] = op.NewName
	case OpFillNulls:
		value := op.Value
		if value == "" {
			value = DefaultFillValue
		}
		for _, row := range t.Rows {
			if isEmpty(row[idx]) {
				row[idx] = value
			}
		}
	case OpStandardizeDates:
		for _, row := range t.Rows {
			row[idx] = standardizeDate(row[idx])
		}
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	return nil
}

// standardizeDate rewrites v in DateLayout. Values that cannot be parsed
// become empty.
func standardizeDate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if t, err := dateparse.ParseAny(v); err == nil {
		return formatDate(t)
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return formatDate(t)
		}
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(DateLayout + " 15:04:05")
}
