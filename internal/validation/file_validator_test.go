package validation

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "zentaocli/internal/errors"
	api "zentaocli/pkg/contracts/api/v1"
	"zentaocli/pkg/contracts/domain"
)

func newTestValidator() *FileValidator {
	return NewFileValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	return path
}

func TestValidateExcelFile(t *testing.T) {
	dir := t.TempDir()
	v := newTestValidator()

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "valid workbook", path: touch(t, dir, "report.xlsx")},
		{name: "wrong extension", path: touch(t, dir, "report.csv"), wantErr: apperrors.ErrValidation},
		{name: "lock file", path: touch(t, dir, "~$report.xlsx"), wantErr: apperrors.ErrValidation},
		{name: "missing", path: filepath.Join(dir, "gone.xlsx"), wantErr: apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateExcelFile(tt.path)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateImageFile(t *testing.T) {
	dir := t.TempDir()
	v := newTestValidator()

	assert.NoError(t, v.ValidateImageFile(touch(t, dir, "device.PNG")))
	assert.NoError(t, v.ValidateImageFile(touch(t, dir, "device.jpeg")))
	assert.ErrorIs(t, v.ValidateImageFile(touch(t, dir, "device.bmp")), apperrors.ErrValidation)
}

func TestValidateFile_Directory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "folder.xlsx")
	require.NoError(t, os.Mkdir(sub, 0755))

	assert.ErrorIs(t, newTestValidator().ValidateExcelFile(sub), apperrors.ErrValidation)
}

func TestValidateOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	require.NoError(t, newTestValidator().ValidateOutputDirectory(dir))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func validCredentials() domain.Credentials {
	return domain.Credentials{Account: "tester", Password: "pw", BaseURL: "http://pm.example/zentao"}
}

func TestRequestValidator(t *testing.T) {
	rv := NewRequestValidator()

	tests := []struct {
		name      string
		req       any
		wantErr   bool
		wantInMsg string
	}{
		{
			name: "valid export",
			req: &api.ExportRequest{
				Credentials: validCredentials(),
				ProductName: "网关",
				DownloadDir: "/tmp/raw",
			},
		},
		{
			name:      "export missing product",
			req:       &api.ExportRequest{Credentials: validCredentials(), DownloadDir: "/tmp"},
			wantErr:   true,
			wantInMsg: "product_name is required",
		},
		{
			name: "export bad target",
			req: &api.ExportRequest{
				Credentials: validCredentials(),
				ProductName: "网关",
				DownloadDir: "/tmp",
				Targets:     []domain.ExportTarget{"defects"},
			},
			wantErr: true,
		},
		{
			name:      "login missing password",
			req:       &api.LoginRequest{Credentials: domain.Credentials{Account: "a", BaseURL: "http://pm"}},
			wantErr:   true,
			wantInMsg: "Password is required",
		},
		{
			name: "bug query bad date and status",
			req: &api.BugQueryRequest{
				Credentials: validCredentials(),
				ProductName: "网关",
				Status:      "open",
				From:        "2024/01/01",
			},
			wantErr:   true,
			wantInMsg: "status must be one of",
		},
		{
			name: "bug query valid",
			req: &api.BugQueryRequest{
				Credentials: validCredentials(),
				ProductName: "网关",
				Status:      domain.BugStatusActive,
				Severity:    2,
				From:        "2024-01-01",
				To:          "2024-02-01",
			},
		},
		{
			name: "fill bad cell",
			req: &api.FillRequest{
				Template: "t.xlsx",
				Sheet:    "验收测试结果",
				CellMap:  map[string]string{"项目名称": "H0"},
			},
			wantErr:   true,
			wantInMsg: "cell reference",
		},
		{
			name: "fill valid",
			req: &api.FillRequest{
				Template: "t.xlsx",
				Sheet:    "验收测试结果",
				CellMap:  map[string]string{"项目名称": "H2", "测试依据": "e6"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rv.Struct(tt.req)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			if tt.wantInMsg != "" {
				assert.Contains(t, err.Error(), tt.wantInMsg)
			}
		})
	}
}
