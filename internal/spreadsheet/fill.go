package spreadsheet

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "zentaocli/internal/errors"
	api "zentaocli/pkg/contracts/api/v1"
)

// FilledPrefix is prepended to the template name to form the output name.
const FilledPrefix = "filled_"

// MergedRemap maps every cell inside a merged region of sheet to the
// region's top-left cell. Cells outside merged regions are absent.
func MergedRemap(f *excelize.File, sheet string) (map[string]string, error) {
	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}

	remap := make(map[string]string)
	for _, m := range merged {
		start, end := m.GetStartAxis(), m.GetEndAxis()
		c1, r1, err := excelize.CellNameToCoordinates(start)
		if err != nil {
			return nil, err
		}
		c2, r2, err := excelize.CellNameToCoordinates(end)
		if err != nil {
			return nil, err
		}
		c1, c2 = min(c1, c2), max(c1, c2)
		r1, r2 = min(r1, r2), max(r1, r2)

		topLeft, _ := excelize.CoordinatesToCellName(c1, r1)
		for r := r1; r <= r2; r++ {
			for c := c1; c <= c2; c++ {
				cell, _ := excelize.CoordinatesToCellName(c, r)
				remap[cell] = topLeft
			}
		}
	}
	return remap, nil
}

// Fill writes req.Values into a copy of req.Template and returns the path of
// the copy, "filled_{name}" next to the template. Empty values leave their
// cell untouched. A cell inside a merged region is written at the region's
// top-left cell.
func Fill(req api.FillRequest, log *slog.Logger) (string, error) {
	log = orDefault(log)

	if _, err := os.Stat(req.Template); err != nil {
		return "", apperrors.NewSpreadsheetError("template not found: "+req.Template, err)
	}
	switch strings.ToLower(filepath.Ext(req.Template)) {
	case ".xlsx", ".xlsm":
	default:
		return "", apperrors.NewAppValidationError(
			fmt.Sprintf("%s is not an Excel template (.xlsx or .xlsm)", filepath.Base(req.Template)))
	}

	f, err := excelize.OpenFile(req.Template)
	if err != nil {
		return "", apperrors.NewSpreadsheetError("cannot open template", err)
	}
	defer f.Close()

	if !hasSheet(f, req.Sheet) {
		return "", apperrors.NewSpreadsheetError(fmt.Sprintf("sheet %q not found in template", req.Sheet), nil).
			WithContext("sheet", req.Sheet)
	}
	log.Info("Loaded sheet", slog.String("sheet", req.Sheet))

	remap, err := MergedRemap(f, req.Sheet)
	if err != nil {
		return "", apperrors.NewSpreadsheetError("cannot read merged cells", err)
	}

	complete := true
	for _, name := range slices.Sorted(maps.Keys(req.CellMap)) {
		cell := strings.ToUpper(strings.TrimSpace(req.CellMap[name]))
		if cell == "" {
			log.Warn("Field has no cell, skipping", slog.String("field", name))
			complete = false
			continue
		}
		if top, ok := remap[cell]; ok {
			cell = top
		}

		value := req.Values[name]
		if value == "" {
			log.Info("Field empty, cell left unchanged", slog.String("field", name), slog.String("cell", cell))
			continue
		}
		if err := f.SetCellValue(req.Sheet, cell, value); err != nil {
			log.Error("Field not written",
				slog.String("field", name),
				slog.String("cell", cell),
				slog.String("error", err.Error()))
			complete = false
			continue
		}
		log.Info("Field written", slog.String("field", name), slog.String("cell", cell), slog.String("value", value))
	}

	out := filepath.Join(filepath.Dir(req.Template), FilledPrefix+filepath.Base(req.Template))
	if err := f.SaveAs(out); err != nil {
		return "", apperrors.NewSpreadsheetError(
			"cannot save "+filepath.Base(out)+"; make sure it is closed and writable", err)
	}

	if complete {
		log.Info("Template filled", slog.String("file", out))
	} else {
		log.Warn("Template filled with problems, check the log", slog.String("file", out))
	}
	return out, nil
}

// FillLedger finds req.Query in the ledger and writes the found columns,
// plus any non-empty extra fields, into the template.
func FillLedger(req api.LedgerRequest, log *slog.Logger) (string, error) {
	log = orDefault(log)

	targets := slices.Sorted(maps.Keys(req.FieldCells))
	found, err := FindRow(req.Ledger, req.KeyColumn, req.Query, targets)
	if err != nil {
		return "", err
	}
	log.Info("Ledger row found", slog.String("query", req.Query), slog.Int("fields", len(found)))

	values := make(map[string]string, len(found)+len(req.Extra))
	cells := make(map[string]string, len(req.FieldCells)+len(req.ExtraCells))
	maps.Copy(values, found)
	maps.Copy(cells, req.FieldCells)

	for name, cell := range req.ExtraCells {
		v := strings.TrimSpace(req.Extra[name])
		if v == "" {
			continue
		}
		values[name] = v
		cells[name] = cell
	}

	return Fill(api.FillRequest{
		Template: req.Template,
		Sheet:    req.Sheet,
		Values:   values,
		CellMap:  cells,
	}, log)
}
