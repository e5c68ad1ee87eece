// Package sheet loads CSV and XLSX files into an in-memory table, summarizes
// them for the AI prompt, detects data-quality issues and applies the
// suggested corrections.
//
// A Processor implements both halves of the correction workflow:
//
//	p := sheet.New(sheet.Config{})
//	analysis, err := p.Analyze("report.xlsx")
//	table, applied, err := p.Apply("report.xlsx", analysis.Suggestions)
//	path, err := p.Persist(table, "report.xlsx", sheet.DefaultSuffix)
//
// Edited files are always written next to the original under a new name; the
// original is never modified.
package sheet
