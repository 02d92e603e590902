package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTargets(t *testing.T) {
	specs := DefaultTargets(nil)
	require.Len(t, specs, 3)

	for i, target := range ExportOrder {
		assert.Equal(t, target, specs[i].Target)
	}

	req := specs[0]
	assert.Equal(t, "需求", req.Label)
	assert.Equal(t, "http://pm/zentao/story-export-42-id_desc-0-unclosed-story.html", req.ExportURL("http://pm/zentao", "42"))
	assert.Equal(t, []string{
		"http://pm/zentao/product-view-42.html",
		"http://pm/zentao/product-browse-42.html",
	}, req.ContextURLs("http://pm/zentao", "42"))

	bugs := specs[1]
	assert.Equal(t, "[公共]  验收报告V1.0", bugs.TemplateKeyword)
	assert.Equal(t, "http://pm/zentao/qa/", bugs.ContextURLs("http://pm/zentao", "42")[0])
}

func TestDefaultTargets_KeywordOverride(t *testing.T) {
	specs := DefaultTargets(map[ExportTarget]string{TargetTestCases: "自定义模板"})
	assert.Equal(t, "自定义模板", specs[2].TemplateKeyword)
	assert.Equal(t, "[公共] 验收报告", specs[0].TemplateKeyword)
}

func TestCredentialsString(t *testing.T) {
	c := Credentials{Account: "tester", Password: "hunter2", BaseURL: "http://pm/zentao"}
	assert.NotContains(t, c.String(), "hunter2")
	assert.Contains(t, c.String(), "tester")
}

func TestBugRecordHelpers(t *testing.T) {
	tests := []struct {
		severity string
		level    int
	}{
		{"2", 2},
		{"1-严重", 1},
		{"", 0},
		{"高", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, BugRecord{Severity: tt.severity}.SeverityLevel(), tt.severity)
	}

	assert.Equal(t, "2024-05-01", BugRecord{OpenedDate: "2024-05-01 10:22:00"}.OpenedDay())
	assert.Equal(t, "05-01", BugRecord{OpenedDate: "05-01"}.OpenedDay())
}

func TestUserProfileName(t *testing.T) {
	assert.Equal(t, "张三", UserProfile{Account: "zhangsan", DisplayName: "张三"}.Name())
	assert.Equal(t, "zhangsan", UserProfile{Account: "zhangsan"}.Name())
}
