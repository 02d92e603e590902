package spreadsheet

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	apperrors "zentaocli/internal/errors"
	api "zentaocli/pkg/contracts/api/v1"
)

// Sheet names of the report template.
const (
	SheetDefects      = "遗留缺陷列表"
	SheetRequirements = "产品需求列表"
	SheetTestCases    = "验收测试用例"
	SheetPhoto        = "设备外观图"
)

const (
	// DataStartRow is the first row that receives export data. Rows 1-2
	// hold the template's title and header.
	DataStartRow = 3

	photoCell     = "A2"
	photoWidthCm  = 23.66
	photoHeightCm = 13.31
	pointsPerCm   = 28.3465
	pixelsPerPt   = 96.0 / 72.0
)

// ConsolidateResult summarises one consolidation
type ConsolidateResult struct {
	Target string
	// Rows is the number of data rows written per sheet.
	Rows    map[string]int
	Created []string
	Skipped []string
	Photo   bool
}

type source struct {
	label string
	path  string
	sheet string
}

type table struct {
	rows   [][]string
	loaded bool
}

func sourcesOf(req api.ConsolidateRequest) []source {
	return []source{
		{label: "defects", path: req.Defects, sheet: SheetDefects},
		{label: "requirements", path: req.Requirements, sheet: SheetRequirements},
		{label: "test cases", path: req.TestCases, sheet: SheetTestCases},
	}
}

// Consolidate copies the exported workbooks into the report at req.Target.
//
// Each source is optional. Its first sheet is read, the header row dropped,
// and the rest written from A3 of the matching report sheet after clearing
// whatever was there. A missing or unreadable source is a warning. A missing
// target or a failed save is fatal.
func Consolidate(ctx context.Context, req api.ConsolidateRequest, log *slog.Logger) (*ConsolidateResult, error) {
	log = orDefault(log)

	if req.Target == "" {
		return nil, apperrors.NewSpreadsheetError("target report is not set", nil)
	}
	if _, err := os.Stat(req.Target); err != nil {
		return nil, apperrors.NewSpreadsheetError(
			fmt.Sprintf("target report %s does not exist", filepath.Base(req.Target)), err)
	}

	sources := sourcesOf(req)
	tables := make([]table, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		if src.path == "" {
			log.Warn("Source not selected, skipping",
				slog.String("source", src.label),
				slog.String("sheet", src.sheet))
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := readExport(src.path)
			if err != nil {
				log.Warn("Source unreadable, skipping",
					slog.String("source", src.label),
					slog.String("file", filepath.Base(src.path)),
					slog.String("error", err.Error()))
				return nil
			}
			tables[i] = table{rows: rows, loaded: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(req.Target)
	if err != nil {
		return nil, apperrors.NewSpreadsheetError("cannot open target report", err)
	}
	defer f.Close()
	log.Info("Opened target report", slog.String("file", filepath.Base(req.Target)))

	res := &ConsolidateResult{Target: req.Target, Rows: make(map[string]int)}

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !tables[i].loaded {
			res.Skipped = append(res.Skipped, src.sheet)
			continue
		}
		created, err := ensureSheet(f, src.sheet)
		if err != nil {
			return nil, apperrors.NewSpreadsheetError("cannot create sheet "+src.sheet, err)
		}
		if created {
			res.Created = append(res.Created, src.sheet)
			log.Info("Created sheet", slog.String("sheet", src.sheet))
		}

		if err := replaceData(f, src.sheet, tables[i].rows); err != nil {
			return nil, apperrors.NewSpreadsheetError("cannot write sheet "+src.sheet, err)
		}
		res.Rows[src.sheet] = len(tables[i].rows)
		log.Info("Sheet updated",
			slog.String("file", filepath.Base(src.path)),
			slog.String("sheet", src.sheet),
			slog.Int("rows", len(tables[i].rows)))
	}

	photoSheet := hasSheet(f, SheetPhoto)
	if req.Image == "" {
		log.Warn("Photo not selected, skipping")
	} else if err := insertPhoto(f, req.Image, log); err != nil {
		log.Warn("Photo not inserted",
			slog.String("file", filepath.Base(req.Image)),
			slog.String("error", err.Error()))
	} else {
		res.Photo = true
		if !photoSheet {
			res.Created = append(res.Created, SheetPhoto)
		}
	}

	if err := f.Save(); err != nil {
		return nil, apperrors.NewSpreadsheetError(
			"cannot save target report; make sure it is not open in another program", err)
	}
	log.Info("Consolidation finished", slog.String("file", filepath.Base(req.Target)))
	return res, nil
}

// readExport returns the rows of the first sheet without its header row
func readExport(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

// replaceData clears rows from DataStartRow down to the used extent, across
// the wider of the used columns and the new data, then writes data at A3.
func replaceData(f *excelize.File, sheet string, data [][]string) error {
	existing, err := f.GetRows(sheet)
	if err != nil {
		return err
	}

	lastCol := 0
	for _, row := range existing {
		lastCol = max(lastCol, len(row))
	}
	for _, row := range data {
		lastCol = max(lastCol, len(row))
	}

	for r := DataStartRow; r <= len(existing); r++ {
		for c := 1; c <= lastCol; c++ {
			cell, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, nil); err != nil {
				return err
			}
		}
	}

	for i, row := range data {
		cell, err := excelize.CoordinatesToCellName(1, DataStartRow+i)
		if err != nil {
			return err
		}
		values := rowValues(row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// insertPhoto replaces the pictures anchored at row 2 and below of the
// photo sheet with the image at path, sized to 23.66cm x 13.31cm.
func insertPhoto(f *excelize.File, path string, log *slog.Logger) error {
	img, err := os.Open(path)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(img)
	img.Close()
	if err != nil {
		return fmt.Errorf("not a supported image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("image has no size")
	}

	if _, err := ensureSheet(f, SheetPhoto); err != nil {
		return err
	}

	removed, err := removePhotos(f, SheetPhoto)
	if err != nil {
		return err
	}
	log.Info("Cleared old pictures", slog.String("sheet", SheetPhoto), slog.Int("count", removed))

	widthPx := photoWidthCm * pointsPerCm * pixelsPerPt
	heightPx := photoHeightCm * pointsPerCm * pixelsPerPt
	opts := &excelize.GraphicOptions{
		ScaleX: widthPx / float64(cfg.Width),
		ScaleY: heightPx / float64(cfg.Height),
	}
	if err := f.AddPicture(SheetPhoto, photoCell, path, opts); err != nil {
		return err
	}
	log.Info("Photo inserted", slog.String("sheet", SheetPhoto), slog.String("cell", photoCell))
	return nil
}

func removePhotos(f *excelize.File, sheet string) (int, error) {
	cells, err := f.GetPictureCells(sheet)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(cells))
	removed := 0
	for _, cell := range cells {
		if seen[cell] {
			continue
		}
		seen[cell] = true
		_, row, err := excelize.CellNameToCoordinates(cell)
		if err != nil || row < 2 {
			continue
		}
		if err := f.DeletePicture(sheet, cell); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
