package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "zentaocli/internal/errors"
	"zentaocli/internal/infrastructure"
	"zentaocli/internal/spreadsheet"
	"zentaocli/pkg/contracts/events"
)

// testEnv roots configuration, settings and logs in a temp directory.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ZTX_PATHS_BASE_DIR", dir)
	t.Setenv(PasswordEnv, "")
	t.Cleanup(infrastructure.ResetLoggerForTesting)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	t.Cleanup(a.close)

	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "zentaocli v")
}

func TestSettingsCommands(t *testing.T) {
	dir := testEnv(t)

	_, err := execute(t, "settings", "set", "zentao_export", "product=网关", "password=secret")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "zentao_export.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "网关")
	assert.NotContains(t, string(data), "secret")

	out, err := execute(t, "settings", "show", "zentao_export")
	require.NoError(t, err)
	assert.Contains(t, out, `"product": "网关"`)

	_, err = execute(t, "settings", "set", "zentao_export", "novalue")
	assert.Error(t, err)
}

func TestExport_RejectsMissingPassword(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "export", "--account", "zhangsan", "--product", "网关")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestBugs_RejectsBadStatus(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "bugs", "-u", "zhangsan", "-p", "pw", "--product", "网关", "--status", "挂起")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// writeReport creates an empty report workbook with a cover sheet.
func writeReport(t *testing.T, path string) {
	t.Helper()
	report := excelize.NewFile()
	require.NoError(t, report.SetSheetName("Sheet1", "封面"))
	require.NoError(t, report.SaveAs(path))
	require.NoError(t, report.Close())
}

// writeExport creates an exported workbook with a header and one bug.
func writeExport(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	src := excelize.NewFile()
	require.NoError(t, src.SetSheetRow("Sheet1", "A1", &[]any{"Bug编号", "Bug标题"}))
	require.NoError(t, src.SetSheetRow("Sheet1", "A2", &[]any{"301", "登录页白屏"}))
	require.NoError(t, src.SaveAs(path))
	require.NoError(t, src.Close())
}

func TestConsolidate(t *testing.T) {
	dir := testEnv(t)

	target := filepath.Join(dir, "验收报告.xlsx")
	writeReport(t, target)
	defects := filepath.Join(dir, "网关_未关闭的 Bug.xlsx")
	writeExport(t, defects)

	out, err := execute(t, "consolidate", "--target", target, "--defects", defects)
	require.NoError(t, err)
	assert.Contains(t, out, spreadsheet.SheetDefects+": 1 rows")
	assert.Contains(t, out, "created sheets: "+spreadsheet.SheetDefects)

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(spreadsheet.SheetDefects, "B3")
	require.NoError(t, err)
	assert.Equal(t, "登录页白屏", v)

	// The target is remembered.
	out, err = execute(t, "settings", "show", "excel_tool")
	require.NoError(t, err)
	assert.Contains(t, out, "验收报告.xlsx")
}

func TestConsolidate_DiscoversExports(t *testing.T) {
	dir := testEnv(t)

	target := filepath.Join(dir, "验收报告.xlsx")
	writeReport(t, target)
	writeExport(t, filepath.Join(dir, "raw_data", "网关_未关闭的 Bug_(R1).xlsx"))

	out, err := execute(t, "consolidate", "--target", target, "--product", "网关", "--report-id", "R1")
	require.NoError(t, err)
	assert.Contains(t, out, spreadsheet.SheetDefects+": 1 rows")
	assert.Contains(t, out, "skipped: "+spreadsheet.SheetRequirements+", "+spreadsheet.SheetTestCases)
}

func TestFollow(t *testing.T) {
	ch := make(chan events.Event, 8)
	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.Local)
	ch <- events.LogEntry{Time: at, Level: slog.LevelInfo, Message: "Starting browser"}
	ch <- events.ProgressUpdate{Percent: 5}
	ch <- events.ProgressUpdate{Percent: 5}
	ch <- events.Completion{Message: "Login failed, check account and password", Err: errors.New("bad password")}
	close(ch)

	var out bytes.Buffer
	done := follow(&out, ch)

	require.NotNil(t, done)
	assert.False(t, done.Success)
	assert.Contains(t, out.String(), "[09:30:00]")
	assert.Contains(t, out.String(), "Starting browser")
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("5%")))
	assert.Contains(t, out.String(), "Login failed")
}

func TestFollow_NoCompletion(t *testing.T) {
	ch := make(chan events.Event)
	close(ch)
	assert.Nil(t, follow(&bytes.Buffer{}, ch))
}
