package spreadsheet

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "zentaocli/internal/errors"
	api "zentaocli/pkg/contracts/api/v1"
)

type sheetData struct {
	name string
	rows [][]any
}

func writeBook(t *testing.T, path string, sheets ...sheetData) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(s.name, cell, &values))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	require.NoError(t, png.Encode(out, img))
}

func readRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func cellOf(t *testing.T, path, sheet, cell string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestConsolidate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "报告.xlsx")
	photo := filepath.Join(dir, "device.png")
	old := filepath.Join(dir, "old.png")

	writeBook(t, target,
		sheetData{name: "封面", rows: [][]any{{"验收报告"}}},
		sheetData{name: SheetRequirements, rows: [][]any{
			{"产品需求列表"},
			{"编号", "名称", "状态", "备注"},
			{"1", "旧需求", "draft", "x"},
			{"2", "旧需求", "draft", "x"},
			{"3", "旧需求", "draft", "x"},
			{"4", "旧需求", "draft", "x"},
		}},
		sheetData{name: SheetPhoto, rows: [][]any{{"设备外观图"}}},
	)
	writePNG(t, old, 10, 10)
	writePNG(t, photo, 40, 20)

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	require.NoError(t, f.AddPicture(SheetPhoto, "A1", old, nil))
	require.NoError(t, f.AddPicture(SheetPhoto, "B3", old, nil))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	requirements := filepath.Join(dir, "需求.xlsx")
	writeBook(t, requirements, sheetData{name: "需求", rows: [][]any{
		{"需求ID", "名称", "状态"},
		{"101", "登录", "active"},
		{"102", "导出", "closed"},
	}})
	defects := filepath.Join(dir, "缺陷.xlsx")
	writeBook(t, defects, sheetData{name: "Bug", rows: [][]any{
		{"Bug编号", "标题"},
		{"7", "崩溃"},
	}})

	res, err := Consolidate(context.Background(), api.ConsolidateRequest{
		Target:       target,
		Defects:      defects,
		Requirements: requirements,
		TestCases:    filepath.Join(dir, "missing.xlsx"),
		Image:        photo,
	}, quiet())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{SheetDefects: 1, SheetRequirements: 2}, res.Rows)
	assert.Equal(t, []string{SheetTestCases}, res.Skipped)
	assert.Equal(t, []string{SheetDefects}, res.Created)
	assert.True(t, res.Photo)

	assert.Equal(t, [][]string{
		{"产品需求列表"},
		{"编号", "名称", "状态", "备注"},
		{"101", "登录", "active"},
		{"102", "导出", "closed"},
	}, readRows(t, target, SheetRequirements))

	rows := readRows(t, target, SheetDefects)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"7", "崩溃"}, rows[2])

	out, err := excelize.OpenFile(target)
	require.NoError(t, err)
	defer out.Close()
	cells, err := out.GetPictureCells(SheetPhoto)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A1", "A2"}, cells)
	assert.Equal(t, "封面", out.GetSheetList()[0], "sheet order is kept")
}

func TestConsolidate_Failures(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "报告.xlsx")
	writeBook(t, target, sheetData{name: SheetDefects})
	source := filepath.Join(dir, "src.xlsx")
	writeBook(t, source, sheetData{name: "s", rows: [][]any{{"h"}, {"v"}}})

	t.Run("missing target", func(t *testing.T) {
		_, err := Consolidate(context.Background(), api.ConsolidateRequest{Target: filepath.Join(dir, "none.xlsx")}, quiet())
		assert.ErrorIs(t, err, apperrors.ErrSpreadsheetIO)
	})

	t.Run("bad image is a warning", func(t *testing.T) {
		notImage := filepath.Join(dir, "photo.png")
		require.NoError(t, os.WriteFile(notImage, []byte("not a picture"), 0o644))

		res, err := Consolidate(context.Background(), api.ConsolidateRequest{
			Target:  target,
			Defects: source,
			Image:   notImage,
		}, quiet())
		require.NoError(t, err)
		assert.False(t, res.Photo)
		assert.Equal(t, 1, res.Rows[SheetDefects])
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Consolidate(ctx, api.ConsolidateRequest{Target: target, Defects: source}, quiet())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFindRow(t *testing.T) {
	ledger := filepath.Join(t.TempDir(), "台账.xlsx")
	writeBook(t, ledger, sheetData{name: "台账", rows: [][]any{
		{"项目编号", "项目_产品", "项目名称", "负责人"},
		{"P-1", "智慧园区_网关", "园区"},
		{"P-2", "智慧园区_摄像机", "园区二期", "王五"},
	}})

	tests := []struct {
		name    string
		key     string
		query   string
		targets []string
		want    map[string]string
		wantErr error
	}{
		{
			name:    "substring match",
			key:     "项目_产品",
			query:   "摄像机",
			targets: []string{"项目编号", "负责人"},
			want:    map[string]string{"项目编号": "P-2", "负责人": "王五"},
		},
		{
			name:    "first match and short row",
			key:     "项目_产品",
			query:   "智慧园区",
			targets: []string{"项目编号", "负责人"},
			want:    map[string]string{"项目编号": "P-1", "负责人": ""},
		},
		{name: "no match", key: "项目_产品", query: "门禁", wantErr: ErrRowNotFound},
		{name: "missing key column", key: "产品", query: "网关", wantErr: apperrors.ErrSpreadsheetIO},
		{name: "missing target column", key: "项目_产品", query: "网关", targets: []string{"预算"}, wantErr: apperrors.ErrSpreadsheetIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRow(ledger, tt.key, tt.query, tt.targets)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergedRemap(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.MergeCell("Sheet1", "D2", "F3"))

	remap, err := MergedRemap(f, "Sheet1")
	require.NoError(t, err)

	assert.Len(t, remap, 6)
	for _, cell := range []string{"D2", "E2", "F2", "D3", "E3", "F3"} {
		assert.Equal(t, "D2", remap[cell], cell)
	}
	_, ok := remap["B1"]
	assert.False(t, ok)
}

func newTemplate(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "模板.xlsx")
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "验收测试结果"))
	require.NoError(t, f.MergeCell("验收测试结果", "H2", "K2"))
	require.NoError(t, f.SetCellValue("验收测试结果", "D2", "keep"))
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestFill(t *testing.T) {
	dir := t.TempDir()
	tpl := newTemplate(t, dir)

	out, err := Fill(api.FillRequest{
		Template: tpl,
		Sheet:    "验收测试结果",
		Values:   map[string]string{"项目名称": "园区", "项目编号": "", "负责人": "王五"},
		CellMap:  map[string]string{"项目名称": "I2", "项目编号": "D2", "负责人": "u4"},
	}, quiet())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "filled_模板.xlsx"), out)
	assert.Equal(t, "园区", cellOf(t, out, "验收测试结果", "H2"), "merged cell write goes to the top-left")
	assert.Equal(t, "keep", cellOf(t, out, "验收测试结果", "D2"), "empty value leaves the cell")
	assert.Equal(t, "王五", cellOf(t, out, "验收测试结果", "U4"))
	assert.Empty(t, cellOf(t, tpl, "验收测试结果", "H2"), "template is not modified")
}

func TestFill_Errors(t *testing.T) {
	dir := t.TempDir()
	tpl := newTemplate(t, dir)
	csv := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(csv, []byte("a,b\n"), 0o644))

	tests := []struct {
		name    string
		req     api.FillRequest
		wantErr error
	}{
		{
			name:    "missing template",
			req:     api.FillRequest{Template: filepath.Join(dir, "none.xlsx"), Sheet: "x"},
			wantErr: apperrors.ErrSpreadsheetIO,
		},
		{
			name:    "not a workbook",
			req:     api.FillRequest{Template: csv, Sheet: "x"},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "missing sheet",
			req:     api.FillRequest{Template: tpl, Sheet: "其他"},
			wantErr: apperrors.ErrSpreadsheetIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fill(tt.req, quiet())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFillLedger(t *testing.T) {
	dir := t.TempDir()
	tpl := newTemplate(t, dir)
	ledger := filepath.Join(dir, "台账.xlsx")
	writeBook(t, ledger, sheetData{name: "台账", rows: [][]any{
		{"项目编号", "项目_产品", "项目名称"},
		{"P-7", "智慧园区_网关", "园区"},
	}})

	req := api.LedgerRequest{
		Ledger:     ledger,
		Template:   tpl,
		Query:      "网关",
		KeyColumn:  "项目_产品",
		Sheet:      "验收测试结果",
		FieldCells: map[string]string{"项目编号": "D2", "项目名称": "H2"},
		ExtraCells: map[string]string{"测试单号": "O2", "申请理由": "D4"},
		Extra:      map[string]string{"测试单号": "T-9", "申请理由": "  "},
	}

	out, err := FillLedger(req, quiet())
	require.NoError(t, err)
	assert.Equal(t, "P-7", cellOf(t, out, "验收测试结果", "D2"))
	assert.Equal(t, "园区", cellOf(t, out, "验收测试结果", "H2"))
	assert.Equal(t, "T-9", cellOf(t, out, "验收测试结果", "O2"))
	assert.Empty(t, cellOf(t, out, "验收测试结果", "D4"))

	req.Query = "门禁"
	_, err = FillLedger(req, quiet())
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestCellValue(t *testing.T) {
	assert.Nil(t, cellValue(""))
	assert.Equal(t, int64(101), cellValue("101"))
	assert.Equal(t, "007", cellValue("007"))
	assert.Equal(t, 1.5, cellValue("1.5"))
	assert.Equal(t, "1.50", cellValue("1.50"))
	assert.Equal(t, "网关", cellValue("网关"))
}
