package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	apperrors "zentaocli/internal/errors"
)

const (
	defaultActionTimeout = 15 * time.Second
	defaultStartTimeout  = 30 * time.Second
)

// ChromeOpener launches Chrome or Edge through the DevTools protocol.
type ChromeOpener struct {
	logger *slog.Logger
}

// NewChromeOpener creates an opener that logs through logger
func NewChromeOpener(logger *slog.Logger) *ChromeOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeOpener{logger: logger}
}

// Open starts a browser with downloads routed to opts.DownloadDir.
// A configured executable that does not exist, or a browser that fails to
// start, yields a DriverUnavailable error.
func (o *ChromeOpener) Open(ctx context.Context, opts Options) (Session, error) {
	if opts.ExecPath != "" {
		if _, err := os.Stat(opts.ExecPath); err != nil {
			return nil, apperrors.NewDriverError(
				fmt.Sprintf("browser executable %s does not exist", opts.ExecPath), err)
		}
	}

	downloadDir, err := filepath.Abs(opts.DownloadDir)
	if err != nil {
		return nil, apperrors.NewDriverError("invalid download directory", err)
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The browser outlives the caller's context; Close tears it down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			o.logger.Debug(fmt.Sprintf(format, args...))
		}))
	teardown := func() {
		tabCancel()
		allocCancel()
	}

	startTimeout := opts.StartTimeout
	if startTimeout <= 0 {
		startTimeout = defaultStartTimeout
	}
	// The first Run allocates the browser on the context it is given, so it
	// must be tabCtx itself. The start is bounded from outside instead.
	timer := time.AfterFunc(startTimeout, teardown)
	stopOnCancel := context.AfterFunc(ctx, teardown)
	err = chromedp.Run(tabCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
	timedOut := !timer.Stop()
	canceled := !stopOnCancel()
	switch {
	case canceled:
		teardown()
		return nil, ctx.Err()
	case timedOut:
		teardown()
		return nil, apperrors.NewDriverError(
			fmt.Sprintf("browser did not start within %s", startTimeout), context.DeadlineExceeded)
	case err != nil:
		teardown()
		return nil, apperrors.NewDriverError("browser failed to start", err)
	}

	o.logger.Info("Browser started",
		slog.Bool("headless", opts.Headless),
		slog.String("download_dir", downloadDir))

	actionTimeout := opts.ActionTimeout
	if actionTimeout <= 0 {
		actionTimeout = defaultActionTimeout
	}
	pageLoad := opts.PageLoadTimeout
	if pageLoad <= 0 {
		pageLoad = 60 * time.Second
	}

	return &chromeSession{
		tab:           tabCtx,
		cancelTab:     tabCancel,
		cancelAlloc:   allocCancel,
		actionTimeout: actionTimeout,
		pageLoad:      pageLoad,
		logger:        o.logger,
	}, nil
}

type chromeSession struct {
	tab           context.Context
	cancelTab     context.CancelFunc
	cancelAlloc   context.CancelFunc
	actionTimeout time.Duration
	pageLoad      time.Duration
	logger        *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on the tab, bounded by ctx as well as the tab's own
// lifetime.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(s.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var c context.CancelFunc
		runCtx, c = context.WithDeadline(runCtx, deadline)
		defer c()
	} else {
		var c context.CancelFunc
		runCtx, c = context.WithTimeout(runCtx, timeout)
		defer c()
	}

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *chromeSession) eval(ctx context.Context, script string, out any) error {
	return s.run(ctx, s.actionTimeout, chromedp.Evaluate(script, out))
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.pageLoad, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return apperrors.NewNavigationError(url, err)
	}
	return nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, s.actionTimeout, chromedp.Location(&url))
	return url, err
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, s.actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *chromeSession) Visible(ctx context.Context, sel string) (bool, error) {
	var visible bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const st = window.getComputedStyle(el);
		if (st.display === 'none' || st.visibility === 'hidden') return false;
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	})()`, jsString(sel))
	err := s.eval(ctx, script, &visible)
	return visible, err
}

func (s *chromeSession) Exists(ctx context.Context, sel string) (bool, error) {
	var found bool
	err := s.eval(ctx, fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(sel)), &found)
	return found, err
}

func (s *chromeSession) Text(ctx context.Context, sel string) (string, error) {
	var text string
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? el.innerText.trim() : '';
	})()`, jsString(sel))
	err := s.eval(ctx, script, &text)
	return text, err
}

func (s *chromeSession) SendKeys(ctx context.Context, sel, keys string) error {
	return s.run(ctx, s.actionTimeout, chromedp.SendKeys(sel, keys, chromedp.ByQuery))
}

func (s *chromeSession) Click(ctx context.Context, sel string) error {
	return s.run(ctx, s.actionTimeout,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
}

func (s *chromeSession) Submit(ctx context.Context, sel string) error {
	return s.run(ctx, s.actionTimeout, chromedp.Submit(sel, chromedp.ByQuery))
}

func (s *chromeSession) SelectValue(ctx context.Context, sel, value string) (bool, error) {
	var ok bool
	script := fmt.Sprintf(`((sel, value) => {
		const el = document.querySelector(sel);
		if (!el || el.tagName !== 'SELECT') return false;
		if (!Array.from(el.options).some(o => o.value === value)) return false;
		el.value = value;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})(%s, %s)`, jsString(sel), jsString(value))
	err := s.eval(ctx, script, &ok)
	return ok, err
}

func (s *chromeSession) CheckRadio(ctx context.Context, sel string) (bool, error) {
	var ok bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		if (!el.checked) el.click();
		return true;
	})()`, jsString(sel))
	err := s.eval(ctx, script, &ok)
	return ok, err
}

func (s *chromeSession) Links(ctx context.Context, sel string) ([]Link, error) {
	var links []Link
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(a => ({
		text: (a.innerText || a.textContent || '').trim(),
		href: a.href || a.getAttribute('href') || ''
	}))`, jsString(sel))
	err := s.eval(ctx, script, &links)
	return links, err
}

func (s *chromeSession) Rows(ctx context.Context, rowSel string, cellSels []string) ([][]string, error) {
	quoted := make([]string, len(cellSels))
	for i, c := range cellSels {
		quoted[i] = jsString(c)
	}

	var rows [][]string
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(tr => [%s].map(c => {
		const el = tr.querySelector(c);
		if (!el) return '';
		return (el.innerText || '').trim() || el.getAttribute('title') || el.getAttribute('data-severity') || '';
	}))`, jsString(rowSel), strings.Join(quoted, ", "))
	err := s.eval(ctx, script, &rows)
	return rows, err
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.tab)
		s.cancelTab()
		s.cancelAlloc()
		s.logger.Info("Browser closed")
	})
	return s.closeErr
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
