package spreadsheet

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// cellValue turns a string read from a workbook back into the value written
// to the target. Numbers that survive a round trip are written as numbers so
// formulas in the report keep working; anything else stays text.
func cellValue(s string) any {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return n
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == s {
			return f
		}
	}
	return s
}

func rowValues(row []string) []any {
	out := make([]any, len(row))
	for i, s := range row {
		out[i] = cellValue(s)
	}
	return out
}

// ensureSheet returns true when the sheet had to be created
func ensureSheet(f *excelize.File, sheet string) (bool, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return false, err
	}
	if idx >= 0 {
		return false, nil
	}
	_, err = f.NewSheet(sheet)
	return err == nil, err
}

func hasSheet(f *excelize.File, sheet string) bool {
	idx, err := f.GetSheetIndex(sheet)
	return err == nil && idx >= 0
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
