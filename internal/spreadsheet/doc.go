// Package spreadsheet reads and writes the report workbooks.
//
// Consolidate merges the three ZenTao exports (and an optional device photo)
// into a report template. FindRow looks a project up in a ledger by a fuzzy
// key match, and Fill writes values into a copy of a template, redirecting
// writes that land inside a merged region to its top-left cell. FillLedger
// chains the two.
//
// All functions work on .xlsx files through excelize and never touch the
// source files they read.
package spreadsheet
