package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for file types the package cannot read or write.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Table is a rectangular sheet: a header row plus data rows padded to its width.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// ColumnIndex returns the position of name in the header, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns the values of column i.
func (t *Table) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// IsSpreadsheet reports whether path has an extension the worker treats as tabular.
func IsSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx", ".xls":
		return true
	}
	return false
}

// Load reads the first sheet of an XLSX file or a whole CSV file.
func Load(path string) (*Table, error) {
	var (
		records [][]string
		name    string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx":
		name, records, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("load %s: %w: %s", filepath.Base(path), ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return newTable(name, records), nil
}

func newTable(name string, records [][]string) *Table {
	t := &Table{Sheet: name}
	if len(records) == 0 {
		return t
	}
	t.Header = records[0]
	width := len(t.Header)
	for _, rec := range records[1:] {
		if len(rec) > width {
			width = len(rec)
		}
	}
	// Unnamed trailing columns get positional names.
	for i := len(t.Header); i < width; i++ {
		t.Header = append(t.Header, "column_"+strconv.Itoa(i+1))
	}
	for _, rec := range records[1:] {
		row := make([]string, width)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

func readXLSX(path string) (string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return sheets[0], rows, nil
}

// write stores t at path in the format selected by the extension.
func write(t *Table, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeCSV(t, path)
	case ".xlsx":
		return writeXLSX(t, path)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func writeCSV(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeXLSX(t *Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if t.Sheet != "" && t.Sheet != sheet {
		if err := f.SetSheetName(sheet, t.Sheet); err != nil {
			return err
		}
		sheet = t.Sheet
	}

	rows := append([][]string{t.Header}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = cellValue(v, i == 0)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f.SaveAs(path)
}

// cellValue keeps numbers numeric so edited workbooks still compute.
func cellValue(v string, header bool) interface{} {
	if header || v == "" {
		return v
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}
