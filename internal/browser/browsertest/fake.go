// Package browsertest provides a scripted browser.Session for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"zentaocli/internal/browser"
)

// Session is an in-memory page model. Selectors are matched literally.
// Hooks run without the lock held and may mutate the session.
type Session struct {
	mu sync.Mutex

	url      string
	html     string
	visible  map[string]bool
	present  map[string]bool
	texts    map[string]string
	selects  map[string][]string
	radios   map[string]bool
	links    map[string][]browser.Link
	rows     map[string][][]string
	typed    map[string]string
	selected map[string]string
	checked  map[string]bool
	calls    []string
	closes   int

	OnNavigate func(s *Session, url string) error
	OnClick    func(s *Session, sel string) error
	OnSubmit   func(s *Session, sel string) error
	OnKeys     func(s *Session, sel, keys string) error
}

// NewSession returns an empty page at about:blank
func NewSession() *Session {
	return &Session{
		url:      "about:blank",
		visible:  make(map[string]bool),
		present:  make(map[string]bool),
		texts:    make(map[string]string),
		selects:  make(map[string][]string),
		radios:   make(map[string]bool),
		links:    make(map[string][]browser.Link),
		rows:     make(map[string][][]string),
		typed:    make(map[string]string),
		selected: make(map[string]string),
		checked:  make(map[string]bool),
	}
}

// Show marks selectors as present and visible
func (s *Session) Show(sels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sel := range sels {
		s.visible[sel] = true
		s.present[sel] = true
	}
}

// Hide removes selectors from the page
func (s *Session) Hide(sels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sel := range sels {
		delete(s.visible, sel)
		delete(s.present, sel)
	}
}

// SetURL changes the current location
func (s *Session) SetURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

// SetHTML replaces the page source
func (s *Session) SetHTML(html string) {
	s.mu.Lock()
	s.html = html
	s.mu.Unlock()
}

// SetText sets the text returned for sel
func (s *Session) SetText(sel, text string) {
	s.mu.Lock()
	s.texts[sel] = text
	s.present[sel] = true
	s.mu.Unlock()
}

// AddSelect registers a <select> with the given option values
func (s *Session) AddSelect(sel string, values ...string) {
	s.mu.Lock()
	s.selects[sel] = values
	s.mu.Unlock()
}

// AddRadio registers a radio input
func (s *Session) AddRadio(sel string) {
	s.mu.Lock()
	s.radios[sel] = true
	s.mu.Unlock()
}

// SetLinks sets the anchors returned for sel
func (s *Session) SetLinks(sel string, links []browser.Link) {
	s.mu.Lock()
	s.links[sel] = links
	s.mu.Unlock()
}

// SetRows sets the table rows returned for rowSel
func (s *Session) SetRows(rowSel string, rows [][]string) {
	s.mu.Lock()
	s.rows[rowSel] = rows
	s.mu.Unlock()
}

// Typed returns everything sent to sel with SendKeys
func (s *Session) Typed(sel string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typed[sel]
}

// Selected returns the value chosen in the select sel
func (s *Session) Selected(sel string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[sel]
}

// Checked reports whether the radio sel was checked
func (s *Session) Checked(sel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked[sel]
}

// Calls returns the recorded method calls, e.g. "navigate http://x"
func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CloseCount returns how many times Close was called
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *Session) record(format string, args ...any) {
	s.mu.Lock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
	s.mu.Unlock()
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.record("navigate %s", url)
	s.SetURL(url)
	if s.OnNavigate != nil {
		return s.OnNavigate(s, url)
	}
	return nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html, nil
}

func (s *Session) Visible(ctx context.Context, sel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible[sel], nil
}

func (s *Session) Exists(ctx context.Context, sel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present[sel], nil
}

func (s *Session) Text(ctx context.Context, sel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texts[sel], nil
}

func (s *Session) SendKeys(ctx context.Context, sel, keys string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.record("keys %s", sel)
	s.mu.Lock()
	s.typed[sel] += keys
	s.mu.Unlock()
	if s.OnKeys != nil {
		return s.OnKeys(s, sel, keys)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.record("click %s", sel)
	if s.OnClick != nil {
		return s.OnClick(s, sel)
	}
	return nil
}

func (s *Session) Submit(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.record("submit %s", sel)
	if s.OnSubmit != nil {
		return s.OnSubmit(s, sel)
	}
	return nil
}

func (s *Session) SelectValue(ctx context.Context, sel, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.selects[sel] {
		if v == value {
			s.selected[sel] = value
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) CheckRadio(ctx context.Context, sel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.radios[sel] {
		return false, nil
	}
	s.checked[sel] = true
	return true, nil
}

func (s *Session) Links(ctx context.Context, sel string) ([]browser.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]browser.Link(nil), s.links[sel]...), nil
}

func (s *Session) Rows(ctx context.Context, rowSel string, cellSels []string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, 0, len(s.rows[rowSel]))
	for _, r := range s.rows[rowSel] {
		row := make([]string, len(cellSels))
		copy(row, r)
		out = append(out, row)
	}
	return out, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return nil
}

// Opener hands out a prepared Session, or fails with Err.
type Opener struct {
	Session *Session
	Err     error

	mu     sync.Mutex
	opened []browser.Options
}

func (o *Opener) Open(ctx context.Context, opts browser.Options) (browser.Session, error) {
	o.mu.Lock()
	o.opened = append(o.opened, opts)
	o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Session, nil
}

// Opened returns the options of every Open call
func (o *Opener) Opened() []browser.Options {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]browser.Options(nil), o.opened...)
}
