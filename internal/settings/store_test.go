package settings

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	apperrors "zentaocli/internal/errors"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))}, opts...)
	return NewStore(t.TempDir(), opts...), &logs
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	values := map[string]any{
		"product_name": "智能网关<2600F>",
		"headless":     true,
		"report_id":    "1024",
	}
	require.NoError(t, store.Save("zentao_export", values))

	raw, err := os.ReadFile(store.Path("zentao_export"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"headless\": true")
	assert.Contains(t, string(raw), "智能网关<2600F>")

	loaded, err := store.Load("zentao_export", map[string]any{"extra": "default"})
	require.NoError(t, err)
	assert.Equal(t, "智能网关<2600F>", loaded["product_name"])
	assert.Equal(t, true, loaded["headless"])
	assert.Equal(t, "default", loaded["extra"])
}

func TestSave_StripsSensitiveKeys(t *testing.T) {
	store, logs := newTestStore(t)

	require.NoError(t, store.Save("zentao_export", map[string]any{
		"username":         "tester",
		"password":         "hunter2",
		"Manager_Password": "secret",
	}))

	raw, err := os.ReadFile(store.Path("zentao_export"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), "tester")
	assert.Contains(t, logs.String(), "Not persisting sensitive setting")
}

func TestSave_CustomSensitiveKeys(t *testing.T) {
	store, _ := newTestStore(t, WithSensitiveKeys("token"))

	require.NoError(t, store.Save("g", map[string]any{"token": "x", "password": "kept"}))
	loaded, err := store.Load("g", nil)
	require.NoError(t, err)
	assert.NotContains(t, loaded, "token")
	assert.Equal(t, "kept", loaded["password"])
}

func TestLoad_Fallbacks(t *testing.T) {
	defaults := map[string]any{"headless": true}

	tests := []struct {
		name    string
		content []byte
		wantLog string
	}{
		{name: "missing file"},
		{name: "unparseable json", content: []byte("{not json"), wantLog: "Failed to parse settings"},
		{name: "json array", content: []byte(`[1,2]`), wantLog: "Failed to parse settings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, logs := newTestStore(t)
			if tt.content != nil {
				require.NoError(t, os.WriteFile(store.Path("g"), tt.content, 0644))
			}

			loaded, err := store.Load("g", defaults)
			require.NoError(t, err)
			assert.Equal(t, defaults, loaded)
			if tt.wantLog != "" {
				assert.Contains(t, logs.String(), tt.wantLog)
			}
		})
	}
}

func TestLoad_DefaultsNotAliased(t *testing.T) {
	store, _ := newTestStore(t)
	defaults := map[string]any{"a": 1}

	loaded, err := store.Load("g", defaults)
	require.NoError(t, err)
	loaded["a"] = 2
	assert.Equal(t, 1, defaults["a"])
}

func TestLoad_GBKRewrittenAsUTF8(t *testing.T) {
	store, _ := newTestStore(t)

	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(`{"product_name": "测试产品"}`))
	require.NoError(t, err)
	require.False(t, utf8.Valid(gbk))
	require.NoError(t, os.WriteFile(store.Path("zentao_export"), gbk, 0644))

	loaded, err := store.Load("zentao_export", nil)
	require.NoError(t, err)
	assert.Equal(t, "测试产品", loaded["product_name"])

	raw, err := os.ReadFile(store.Path("zentao_export"))
	require.NoError(t, err)
	assert.True(t, utf8.Valid(raw))
	assert.Contains(t, string(raw), "测试产品")
}

func TestInvalidGroup(t *testing.T) {
	store := NewStore(t.TempDir(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	for _, group := range []string{"", "..", "a/b", `a\b`} {
		err := store.Save(group, nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation, group)

		_, err = store.Load(group, nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation, group)
	}
}

func TestPath(t *testing.T) {
	store := NewStore("/tmp/settings")
	assert.Equal(t, filepath.Join("/tmp/settings", "bug_query.txt"), store.Path("bug_query"))
	assert.True(t, strings.HasSuffix(store.Path("x"), ".txt"))
}
