package operations

import (
	"context"
	"log/slog"
	"strings"

	"zentaocli/internal/browser"
	"zentaocli/pkg/contracts/domain"
)

// ResolveEntity returns the ID of the first link whose text contains name.
// The ID is the last hyphen-separated token of the href, cut at its first
// dot: ".../product-view-12.html" gives "12". Links whose href yields no ID
// are skipped.
func ResolveEntity(links []browser.Link, name string) (string, bool) {
	for _, l := range links {
		if !strings.Contains(l.Text, name) {
			continue
		}
		if id := entityID(l.Href); id != "" {
			return id, true
		}
	}
	return "", false
}

func entityID(href string) string {
	i := strings.LastIndex(href, "-")
	if i < 0 {
		return ""
	}
	id, _, _ := strings.Cut(href[i+1:], ".")
	return id
}

// profileFields maps profile table labels to setters. Checked in order,
// first match wins.
var profileFields = []struct {
	label string
	set   func(p *domain.UserProfile, v string)
}{
	{"最后登录", func(p *domain.UserProfile, v string) { p.LastLogin = v }},
	{"真实姓名", func(p *domain.UserProfile, v string) { p.DisplayName = v }},
	{"姓名", func(p *domain.UserProfile, v string) { p.DisplayName = v }},
	{"用户名", func(p *domain.UserProfile, v string) { p.Account = v }},
	{"账号", func(p *domain.UserProfile, v string) { p.Account = v }},
	{"部门", func(p *domain.UserProfile, v string) { p.Department = v }},
	{"职位", func(p *domain.UserProfile, v string) { p.Position = v }},
	{"权限", func(p *domain.UserProfile, v string) { p.Role = v }},
	{"角色", func(p *domain.UserProfile, v string) { p.Role = v }},
}

const selProfileRows = "#mainContent table tr"

// ParseProfile fills a profile from label/value rows of the profile page
func ParseProfile(rows [][]string) domain.UserProfile {
	var p domain.UserProfile
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		label := strings.TrimSuffix(strings.TrimSpace(row[0]), "：")
		value := strings.TrimSpace(row[1])
		if label == "" || value == "" {
			continue
		}
		for _, f := range profileFields {
			if strings.Contains(label, f.label) {
				f.set(&p, value)
				break
			}
		}
	}
	return p
}

// profile reads /my-profile.html. The profile is informational, so problems
// are logged and whatever was read is returned.
func (r *run) profile(ctx context.Context, account string) *domain.UserProfile {
	p := &domain.UserProfile{Account: account}

	if err := r.navigate(ctx, r.baseURL+ProfilePath); err != nil {
		_ = r.warnUnlessCancelled(ctx, "Could not open profile page", err)
		return p
	}

	rows, err := r.sess.Rows(ctx, selProfileRows, []string{"th", "td"})
	if err != nil {
		_ = r.warnUnlessCancelled(ctx, "Could not read profile page", err)
		return p
	}

	parsed := ParseProfile(rows)
	if parsed.Account == "" {
		parsed.Account = account
	}
	if parsed.DisplayName == "" {
		if name, err := r.sess.Text(ctx, selUserName); err == nil {
			parsed.DisplayName = name
		}
	}
	*p = parsed

	r.log.InfoContext(ctx, "Profile loaded",
		slog.String("account", p.Account),
		slog.String("name", p.Name()),
		slog.String("department", p.Department))
	return p
}
