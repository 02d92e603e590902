// Package browser wraps the headless browser used to drive the ZenTao web UI.
//
// The pipeline talks to a Session only. The chromedp implementation is
// returned by ChromeOpener; tests use the scripted session in browsertest.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp/kb"
)

// Enter is the key sequence for the Enter key, usable with SendKeys.
const Enter = kb.Enter

// Link is an anchor element read from a page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Session is one live browser tab. All element lookups use CSS selectors.
// Visible, Exists, SelectValue and CheckRadio never wait: callers poll them
// with a retry policy.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	Visible(ctx context.Context, sel string) (bool, error)
	Exists(ctx context.Context, sel string) (bool, error)
	Text(ctx context.Context, sel string) (string, error)

	SendKeys(ctx context.Context, sel, keys string) error
	Click(ctx context.Context, sel string) error
	Submit(ctx context.Context, sel string) error

	// SelectValue sets a <select> to the option with value. It reports false
	// when the element or the option is missing.
	SelectValue(ctx context.Context, sel, value string) (bool, error)
	// CheckRadio checks the first radio input matching sel. It reports false
	// when nothing matches.
	CheckRadio(ctx context.Context, sel string) (bool, error)

	Links(ctx context.Context, sel string) ([]Link, error)
	// Rows returns, for every element matching rowSel, the trimmed text of the
	// first descendant matching each of cellSels.
	Rows(ctx context.Context, rowSel string, cellSels []string) ([][]string, error)

	// Close releases the browser. Only the first call has an effect.
	Close() error
}

// Options configure a new browser process.
type Options struct {
	ExecPath        string
	Headless        bool
	Width           int
	Height          int
	DownloadDir     string
	PageLoadTimeout time.Duration
	// ActionTimeout bounds element actions when the caller's context has
	// no deadline.
	ActionTimeout time.Duration
	// StartTimeout bounds the browser launch. Zero means 30s.
	StartTimeout time.Duration
}

// Opener starts browser sessions.
type Opener interface {
	Open(ctx context.Context, opts Options) (Session, error)
}
