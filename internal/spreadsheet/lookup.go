package spreadsheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "zentaocli/internal/errors"
)

// ErrRowNotFound is returned by FindRow when no row matches the query.
var ErrRowNotFound = errors.New("no matching row")

// FindRow scans the active sheet of the workbook at path for the first data
// row whose keyColumn cell contains query, and returns the values of the
// target columns of that row. Columns are addressed by their header text in
// row 1.
func FindRow(path, keyColumn, query string, targets []string) (map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewSpreadsheetError("cannot open ledger", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewSpreadsheetError("cannot read ledger sheet "+sheet, err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewSpreadsheetError("ledger sheet "+sheet+" is empty", nil)
	}

	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if _, dup := header[h]; !dup {
			header[h] = i
		}
	}

	key, ok := header[keyColumn]
	if !ok {
		return nil, apperrors.NewSpreadsheetError(fmt.Sprintf("column %q not found", keyColumn), nil).
			WithContext("column", keyColumn)
	}
	for _, col := range targets {
		if _, ok := header[col]; !ok {
			return nil, apperrors.NewSpreadsheetError(fmt.Sprintf("target column %q not found", col), nil).
				WithContext("column", col)
		}
	}

	for _, row := range rows[1:] {
		if !strings.Contains(at(row, key), query) {
			continue
		}
		out := make(map[string]string, len(targets))
		for _, col := range targets {
			out[col] = at(row, header[col])
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q in column %q", ErrRowNotFound, query, keyColumn)
}

// at tolerates the short rows GetRows returns for trailing empty cells
func at(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
