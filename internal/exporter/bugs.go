package exporter

import (
	"path/filepath"
	"strings"

	apperrors "zentaocli/internal/errors"
	"zentaocli/pkg/contracts/domain"
)

// Sheet names of a bug export workbook
const (
	SheetBugs      = "BUG查询结果"
	SheetQueryInfo = "查询信息"
)

// BugHeaders are the column titles of a bug export.
var BugHeaders = []string{"BUG ID", "标题", "状态", "创建人", "创建时间", "严重程度", "指派给"}

// QueryInfoHeaders are the column titles of the query summary sheet.
var QueryInfoHeaders = []string{"查询时间", "操作人", "产品名称", "查询状态", "严重程度", "开始日期", "结束日期", "结果数量"}

// BugRow returns the export cells of b in BugHeaders order.
func BugRow(b domain.BugRecord) []string {
	return []string{b.ID, b.Title, b.Status, b.OpenedBy, b.OpenedDate, b.Severity, b.AssignedTo}
}

// WriteBugs exports records to path. A .xlsx path gets the bug sheet plus a
// query summary sheet; a .csv path gets the bugs only, with a UTF-8 BOM.
func WriteBugs(path string, records []domain.BugRecord, info domain.BugQueryInfo) error {
	rows := make([][]string, len(records))
	for i, b := range records {
		rows[i] = BugRow(b)
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = WriteXLSX(path,
			Sheet{Name: SheetBugs, Headers: BugHeaders, Rows: anyRows(rows), ColWidth: 18},
			Sheet{Name: SheetQueryInfo, Headers: QueryInfoHeaders, Rows: [][]any{{
				info.QueriedAt.Format("2006-01-02 15:04:05"),
				info.Operator,
				info.Product,
				info.Status,
				info.Severity,
				info.From,
				info.To,
				info.Count,
			}}},
		)
	case ".csv":
		err = WriteCSV(path, WriteOptions{Headers: BugHeaders, Records: rows, BOMPrefix: true})
	default:
		return apperrors.NewAppValidationError("export path must end in .xlsx or .csv: " + path)
	}
	if err != nil {
		return apperrors.NewSpreadsheetError("failed to export bugs to "+filepath.Base(path), err)
	}
	return nil
}

func anyRows(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, s := range row {
			cells[j] = s
		}
		out[i] = cells
	}
	return out
}
