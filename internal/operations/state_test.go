package operations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zentaocli/internal/browser"
	"zentaocli/pkg/contracts/domain"
)

func TestRunState_Transitions(t *testing.T) {
	s := NewRunState("run-1")
	assert.Equal(t, "INIT", s.Current())

	require.NoError(t, s.Advance(PhaseBrowserReady, ""))
	require.NoError(t, s.Advance(PhaseLoggedIn, ""))
	require.NoError(t, s.Advance(PhaseEntityResolved, ""))
	require.NoError(t, s.Advance(PhaseExporting, domain.TargetRequirements))
	assert.Equal(t, "EXPORTING(requirements)", s.Current())
	require.NoError(t, s.Advance(PhaseExporting, domain.TargetTestCases))
	require.NoError(t, s.Advance(PhaseDone, ""))

	assert.Error(t, s.Advance(PhaseExporting, domain.TargetRequirements))

	s.Fail(errors.New("late"))
	assert.Equal(t, "DONE", s.Current(), "a finished run cannot fail")
	assert.Len(t, s.History(), 6)
}

func TestRunState_InvalidAndFail(t *testing.T) {
	s := NewRunState("run-2")
	assert.Error(t, s.Advance(PhaseLoggedIn, ""), "cannot skip the browser")

	require.NoError(t, s.Advance(PhaseBrowserReady, ""))
	s.Fail(errors.New("login timed out"))

	assert.Equal(t, "FAILED", s.Current())
	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, "BROWSER_READY", h[1].From)
	assert.Equal(t, "login timed out", h[1].Reason)
	assert.NotNil(t, s.EndTime)
}

func TestResolveEntity(t *testing.T) {
	links := []browser.Link{
		{Text: "物联网关 V2", Href: "http://pm/zentao/product-view-31.html"},
		{Text: "网关", Href: "http://pm/zentao/product-view-12.html"},
		{Text: "无编号", Href: "http://pm/zentao/productview"},
	}

	tests := []struct {
		name   string
		query  string
		wantID string
		wantOK bool
	}{
		{name: "first substring match wins", query: "网关", wantID: "31", wantOK: true},
		{name: "exact text", query: "物联网关 V2", wantID: "31", wantOK: true},
		{name: "no match", query: "平台", wantOK: false},
		{name: "unparseable href is skipped", query: "无编号", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ResolveEntity(links, tt.query)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestParseProfile(t *testing.T) {
	p := ParseProfile([][]string{
		{"用户名：", "lisi"},
		{"姓名", "李四"},
		{"所属部门", "研发部"},
		{"角色", "开发"},
		{"", "ignored"},
		{"单列"},
	})

	assert.Equal(t, domain.UserProfile{
		Account:     "lisi",
		DisplayName: "李四",
		Department:  "研发部",
		Role:        "开发",
	}, p)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Task failed: boom", failureMessage(errors.New("boom")))
	assert.Equal(t, "Unexpected internal error", failureMessage(&PanicError{Kind: KindFill, Value: "x"}))
}
