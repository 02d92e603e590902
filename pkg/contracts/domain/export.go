package domain

import (
	"fmt"
	"strings"
)

// Credentials identify a user on the service for one run. They are never
// persisted.
type Credentials struct {
	Account  string `json:"account" validate:"required"`
	Password string `json:"-" validate:"required"`
	BaseURL  string `json:"base_url" validate:"required,url"`
}

// String hides the password
func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s", c.Account, c.BaseURL)
}

// ExportTarget names one of the exportable data sets.
type ExportTarget string

const (
	TargetRequirements    ExportTarget = "requirements"
	TargetUnclosedDefects ExportTarget = "unclosed_defects"
	TargetTestCases       ExportTarget = "test_cases"
)

// TargetSpec describes how a target is exported.
type TargetSpec struct {
	Target ExportTarget
	// Label is used in file names and user messages.
	Label string
	// ExportPath and ContextPaths contain an {id} placeholder.
	ExportPath      string
	TemplateKeyword string
	ContextPaths    []string
}

// ExportURL returns the export form URL for entity id
func (s TargetSpec) ExportURL(baseURL, id string) string {
	return baseURL + expand(s.ExportPath, id)
}

// ContextURLs returns the pages visited before the export form
func (s TargetSpec) ContextURLs(baseURL, id string) []string {
	urls := make([]string, len(s.ContextPaths))
	for i, p := range s.ContextPaths {
		urls[i] = baseURL + expand(p, id)
	}
	return urls
}

func expand(path, id string) string {
	return strings.ReplaceAll(path, "{id}", id)
}

// ExportOrder is the fixed order targets are exported in.
var ExportOrder = []ExportTarget{TargetRequirements, TargetUnclosedDefects, TargetTestCases}

// DefaultTargets returns the export table with the given template keywords
// (keyed by target). Missing keywords fall back to the built-in ones.
func DefaultTargets(keywords map[ExportTarget]string) []TargetSpec {
	specs := []TargetSpec{
		{
			Target:          TargetRequirements,
			Label:           "需求",
			ExportPath:      "/story-export-{id}-id_desc-0-unclosed-story.html",
			TemplateKeyword: "[公共] 验收报告",
			ContextPaths:    []string{"/product-view-{id}.html", "/product-browse-{id}.html"},
		},
		{
			Target:          TargetUnclosedDefects,
			Label:           "未关闭的 Bug",
			ExportPath:      "/bug-export-{id}-openedDate_desc-unclosed.html",
			TemplateKeyword: "[公共]  验收报告V1.0",
			ContextPaths:    []string{"/qa/", "/bug-browse-{id}.html"},
		},
		{
			Target:          TargetTestCases,
			Label:           "测试单",
			ExportPath:      "/testcase-export-{id}-id_desc-0-all-testcase.html",
			TemplateKeyword: "[公共] 验收报告",
			ContextPaths:    []string{"/testcase-browse-{id}.html"},
		},
	}

	for i := range specs {
		if kw := keywords[specs[i].Target]; kw != "" {
			specs[i].TemplateKeyword = kw
		}
	}
	return specs
}
