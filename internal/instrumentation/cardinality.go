package instrumentation

import (
	"path/filepath"
	"strings"
)

// Cardinality management helpers for metrics.
// Attachment names come from arbitrary senders, so only a fixed set of label
// values may reach the metrics backend.

// File type label values.
const (
	FileTypeSpreadsheet = "spreadsheet"
	FileTypeDocument    = "document"
	FileTypeOther       = "other"
)

// FileTypeLabel maps a filename to a bounded file type label.
//
// Example:
//
//	FileTypeLabel("report.xlsx")  // "spreadsheet"
//	FileTypeLabel("notes.PDF")    // "document"
//	FileTypeLabel("photo.jpg")    // "other"
func FileTypeLabel(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls", ".csv":
		return FileTypeSpreadsheet
	case ".pdf", ".docx", ".doc", ".txt":
		return FileTypeDocument
	default:
		return FileTypeOther
	}
}

// Common operation types for Google API metrics.
const (
	OperationList     = "list"
	OperationGet      = "get"
	OperationModify   = "modify"
	OperationGenerate = "generate"
)
