// Package exporter writes query results to files.
//
// WriteCSV and WriteXLSX are the format writers. WriteBugs picks one by the
// extension of the target path and lays out a bug query result:
//
//	info := bugquery.Info(req, len(bugs), time.Now())
//	err := exporter.WriteBugs("BUG查询结果_20261017_093000.xlsx", bugs, info)
//
// CSV output starts with a UTF-8 BOM so Excel detects the encoding.
package exporter
