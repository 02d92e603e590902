package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"zentaocli/internal/browser"
	"zentaocli/internal/config"
	"zentaocli/internal/download"
	apperrors "zentaocli/internal/errors"
	"zentaocli/internal/infrastructure"
	"zentaocli/internal/retry"
	api "zentaocli/pkg/contracts/api/v1"
	"zentaocli/pkg/contracts/domain"
)

// Paths and selectors of the ZenTao web UI.
const (
	LoginPath   = "/user-login.html"
	ListingPath = "/product-all-0-0-noclosed-order_desc-849-2000-1.html"
	ProfilePath = "/my-profile.html"

	selAccount      = "#account"
	selPassword     = `input[name="password"]`
	selLoginSubmit  = "#submit"
	selUserName     = ".main-header .user-name"
	selListingReady = `a[href*="product-view"]`
	selEntityLinks  = `a[href*="/product-view-"]`
	selExportForm   = "form.main-form"
	selTemplateBox  = "#template_chosen"
	selTemplateOpen = "#template_chosen a.chosen-single"
	selTemplateFind = "#template_chosen .chosen-search input"
	selTemplateText = "#template_chosen .chosen-single span"
	selLoading      = ".load-indicator-wrapper, .modal-loading, .ajax-loader, .spinner, #ajaxModal.loading"

	loginFailedMarker = "登录失败"
	exportExt         = "xlsx"
)

var (
	fileTypeStrategies = []browser.Strategy{
		browser.SelectOption("#fileType", "xlsx"),
		browser.RadioOption(`input[type="radio"][name="fileType"][value="xlsx"]`),
	}
	rowScopeStrategies = []browser.Strategy{
		browser.SelectOption(`select[name="exportType"]`, "all"),
		browser.SelectOption(`select[name="rows[type]"]`, "all"),
		browser.RadioOption(`input[type="radio"][name="exportType"][value="all"]`),
		browser.RadioOption(`input[type="radio"][name="rows[type]"][value="all"]`),
	}
)

// Waits bounds each element wait of a run.
type Waits struct {
	Poll          time.Duration
	AccountField  time.Duration
	Login         time.Duration
	Listing       time.Duration
	Form          time.Duration
	Template      time.Duration
	LoadingAppear time.Duration
	LoadingGone   time.Duration
}

// WaitsFrom derives the element waits from the service configuration
func WaitsFrom(cfg config.ZenTaoConfig) Waits {
	return Waits{
		Poll:          250 * time.Millisecond,
		AccountField:  15 * time.Second,
		Login:         cfg.LoginTimeout,
		Listing:       cfg.ListingTimeout,
		Form:          cfg.FormTimeout,
		Template:      10 * time.Second,
		LoadingAppear: 10 * time.Second,
		LoadingGone:   60 * time.Second,
	}
}

// PoliciesFrom builds the download policies from configuration
func PoliciesFrom(cfg config.DownloadConfig) download.Policies {
	return download.Policies{
		Poll:      retry.Policy{Interval: cfg.PollInterval, Timeout: cfg.Timeout},
		Stability: retry.Policy{Interval: cfg.StabilityInterval, Timeout: cfg.StabilityTimeout, Stability: cfg.StabilitySamples},
		Rename:    retry.Policy{Interval: cfg.RenameInterval, Attempts: cfg.RenameAttempts},
	}
}

// Result summarises a finished export run.
type Result struct {
	EntityID string
	Files    map[domain.ExportTarget]string
	Elapsed  time.Duration
	History  []Transition
}

// Pipeline drives one browser through login, entity lookup and the exports.
type Pipeline struct {
	cfg      *config.Config
	opener   browser.Opener
	targets  []domain.TargetSpec
	policies download.Policies
	waits    Waits
	pace     *rate.Limiter
	tracer   *RunTracer
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithTracer sets the tracer used for spans and export metrics
func WithTracer(t *RunTracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithPolicies overrides the download policies
func WithPolicies(pol download.Policies) Option {
	return func(p *Pipeline) { p.policies = pol }
}

// WithWaits overrides the element waits
func WithWaits(w Waits) Option {
	return func(p *Pipeline) { p.waits = w }
}

// WithPace sets the minimum gap between page navigations. Zero disables
// pacing.
func WithPace(every time.Duration) Option {
	return func(p *Pipeline) { p.pace = newPacer(every) }
}

// NewPipeline creates a pipeline for cfg using opener to start browsers
func NewPipeline(cfg *config.Config, opener browser.Opener, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		opener: opener,
		targets: domain.DefaultTargets(map[domain.ExportTarget]string{
			domain.TargetRequirements:    cfg.Templates.Requirements,
			domain.TargetUnclosedDefects: cfg.Templates.UnclosedDefects,
			domain.TargetTestCases:       cfg.Templates.TestCases,
		}),
		policies: PoliciesFrom(cfg.Download),
		waits:    WaitsFrom(cfg.ZenTao),
		pace:     newPacer(cfg.ZenTao.NavigationEvery),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer, _ = NewRunTracer(nil)
	}
	return p
}

func newPacer(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// Run performs a full export: INIT → BROWSER_READY → LOGGED_IN →
// ENTITY_RESOLVED → EXPORTING(target)... → DONE. Any failure ends in FAILED
// and the browser is released exactly once.
func (p *Pipeline) Run(ctx context.Context, req api.ExportRequest, rep *Reporter) (result *Result, err error) {
	state := NewRunState(infrastructure.GetRunID(ctx))
	log := rep.Logger()
	defer func() {
		if err != nil {
			state.Fail(err)
			log.ErrorContext(ctx, "Export failed",
				slog.String("state", state.Current()),
				slog.String("error", err.Error()))
		}
	}()

	r, err := p.start(ctx, state, req.Credentials, req.Headless, req.DownloadDir, rep)
	if err != nil {
		return nil, err
	}
	defer r.close(ctx)

	if err := r.phase(ctx, PhaseLoggedIn, "", func(ctx context.Context) error {
		return r.login(ctx, req.Credentials)
	}); err != nil {
		return nil, err
	}

	rep.Progress(ProgressLookup)
	var entityID string
	if err := r.phase(ctx, PhaseEntityResolved, "", func(ctx context.Context) error {
		entityID, err = r.resolve(ctx, req.ProductName)
		return err
	}); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "Product resolved, starting exports", slog.String("id", entityID))
	rep.Progress(ProgressResolved)

	reportID := req.ReportID
	if reportID == "" {
		reportID = p.cfg.ZenTao.ReportID
	}

	watcher := download.NewWatcher(req.DownloadDir, exportExt, p.policies, log)
	files := make(map[domain.ExportTarget]string)
	for _, spec := range p.selectTargets(req.Targets) {
		checkpoints := exportCheckpoints[spec.Target]
		if checkpoints[0] > 0 {
			rep.Progress(checkpoints[0])
		}

		var path string
		if err := r.phase(ctx, PhaseExporting, spec.Target, func(ctx context.Context) error {
			path, err = r.export(ctx, spec, entityID, req.ProductName, reportID, watcher)
			return err
		}); err != nil {
			return nil, err
		}
		files[spec.Target] = path
		log.InfoContext(ctx, "Export finished", slog.String("label", spec.Label), slog.String("file", path))

		if checkpoints[1] > 0 {
			rep.Progress(checkpoints[1])
		}
	}

	if err := state.Advance(PhaseDone, ""); err != nil {
		return nil, err
	}
	rep.Progress(ProgressDone)
	log.InfoContext(ctx, "All exports finished", slog.String("elapsed", elapsedString(state.Duration())))

	return &Result{
		EntityID: entityID,
		Files:    files,
		Elapsed:  state.Duration(),
		History:  state.History(),
	}, nil
}

// LoginOnly signs in and reads the user's profile page.
func (p *Pipeline) LoginOnly(ctx context.Context, req api.LoginRequest, rep *Reporter) (profile *domain.UserProfile, err error) {
	state := NewRunState(infrastructure.GetRunID(ctx))
	log := rep.Logger()
	defer func() {
		if err != nil {
			state.Fail(err)
			log.ErrorContext(ctx, "Login check failed", slog.String("error", err.Error()))
		}
	}()

	r, err := p.start(ctx, state, req.Credentials, req.Headless, p.cfg.Download.Dir, rep)
	if err != nil {
		return nil, err
	}
	defer r.close(ctx)

	if err := r.phase(ctx, PhaseLoggedIn, "", func(ctx context.Context) error {
		return r.login(ctx, req.Credentials)
	}); err != nil {
		return nil, err
	}
	rep.Progress(50)

	profile = r.profile(ctx, req.Credentials.Account)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.Advance(PhaseDone, ""); err != nil {
		return nil, err
	}
	rep.Progress(ProgressDone)
	log.InfoContext(ctx, "Signed in", slog.String("user", profile.Name()))
	return profile, nil
}

// selectTargets returns the requested targets in export order. Empty means
// all of them.
func (p *Pipeline) selectTargets(want []domain.ExportTarget) []domain.TargetSpec {
	if len(want) == 0 {
		return p.targets
	}
	wanted := make(map[domain.ExportTarget]bool, len(want))
	for _, t := range want {
		wanted[t] = true
	}
	var out []domain.TargetSpec
	for _, spec := range p.targets {
		if wanted[spec.Target] {
			out = append(out, spec)
		}
	}
	return out
}

// run is the per-invocation state shared by the phases.
type run struct {
	p       *Pipeline
	sess    browser.Session
	state   *RunState
	rep     *Reporter
	log     *slog.Logger
	baseURL string
	dir     string
}

// start performs INIT → BROWSER_READY.
func (p *Pipeline) start(ctx context.Context, state *RunState, creds domain.Credentials, headless bool, dir string, rep *Reporter) (*run, error) {
	log := rep.Logger()
	rep.Progress(ProgressBrowser)
	log.InfoContext(ctx, "Starting browser", slog.String("download_dir", dir), slog.Bool("headless", headless))

	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(p.cfg.ZenTao.BaseURL, "/")
	}

	r := &run{p: p, state: state, rep: rep, log: log, baseURL: baseURL, dir: dir}
	err := r.phase(ctx, PhaseBrowserReady, "", func(ctx context.Context) error {
		sess, err := p.opener.Open(ctx, browser.Options{
			ExecPath:        p.cfg.Browser.ExecPath,
			Headless:        headless,
			Width:           p.cfg.Browser.WindowWidth,
			Height:          p.cfg.Browser.WindowHeight,
			DownloadDir:     dir,
			PageLoadTimeout: p.cfg.Browser.PageLoadTimeout,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if apperrors.TypeOf(err) == "" {
				err = apperrors.NewDriverError("browser failed to start", err)
			}
			return err
		}
		r.sess = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "Browser ready")
	return r, nil
}

// phase runs fn inside a span and advances the state machine when it
// succeeds.
func (r *run) phase(ctx context.Context, next Phase, target domain.ExportTarget, fn func(context.Context) error) error {
	label := string(next)
	if target != "" {
		label = fmt.Sprintf("%s(%s)", next, target)
	}
	if next == PhaseExporting {
		if err := r.state.Advance(next, target); err != nil {
			return err
		}
	}

	ctx, span := r.p.tracer.StartPhase(ctx, label)
	err := fn(ctx)
	r.p.tracer.EndSpan(span, err)
	if err != nil {
		return err
	}
	if next != PhaseExporting {
		return r.state.Advance(next, target)
	}
	return nil
}

func (r *run) close(ctx context.Context) {
	if r.sess == nil {
		return
	}
	r.log.InfoContext(ctx, "Closing browser")
	if err := r.sess.Close(); err != nil {
		r.log.WarnContext(ctx, "Browser did not close cleanly", slog.String("error", err.Error()))
	}
}

// navigate opens url, pacing consecutive navigations.
func (r *run) navigate(ctx context.Context, url string) error {
	if err := r.p.pace.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return r.sess.Navigate(ctx, url)
}

func (r *run) policy(timeout time.Duration) retry.Policy {
	return retry.Policy{Interval: r.p.waits.Poll, Timeout: timeout}
}

func (r *run) waitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return r.policy(timeout).Until(ctx, func(ctx context.Context) (bool, error) {
		return r.sess.Visible(ctx, sel)
	})
}

func (r *run) waitExists(ctx context.Context, sel string, timeout time.Duration) error {
	return r.policy(timeout).Until(ctx, func(ctx context.Context) (bool, error) {
		return r.sess.Exists(ctx, sel)
	})
}

// warnUnlessCancelled logs a non-fatal problem. It returns the context's
// error when the run was cancelled.
func (r *run) warnUnlessCancelled(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	r.log.WarnContext(ctx, msg, slog.String("error", err.Error()))
	return nil
}

// login performs BROWSER_READY → LOGGED_IN.
func (r *run) login(ctx context.Context, creds domain.Credentials) error {
	r.rep.Progress(ProgressLogin)
	loginURL := r.baseURL + LoginPath
	r.log.InfoContext(ctx, "Opening login page", slog.String("url", loginURL))

	if err := r.navigate(ctx, loginURL); err != nil {
		return err
	}
	if err := r.waitVisible(ctx, selAccount, r.p.waits.AccountField); err != nil {
		if errors.Is(err, retry.ErrTimeout) {
			return apperrors.NewLoginTimeoutError(err)
		}
		return err
	}

	if err := r.sess.SendKeys(ctx, selAccount, creds.Account); err != nil {
		return err
	}
	if err := r.sess.SendKeys(ctx, selPassword, creds.Password); err != nil {
		return err
	}
	r.log.InfoContext(ctx, "Submitting credentials", slog.String("account", creds.Account))
	if err := r.sess.Click(ctx, selLoginSubmit); err != nil {
		return err
	}

	var rejected bool
	err := r.policy(r.p.waits.Login).Until(ctx, func(ctx context.Context) (bool, error) {
		html, err := r.sess.HTML(ctx)
		if err != nil {
			return false, err
		}
		if strings.Contains(html, loginFailedMarker) {
			rejected = true
			return true, nil
		}
		loc, err := r.sess.Location(ctx)
		if err != nil {
			return false, err
		}
		if loc != loginURL {
			return true, nil
		}
		return r.sess.Exists(ctx, selUserName)
	})
	if rejected {
		return apperrors.NewAuthenticationError("account or password rejected")
	}
	if err != nil {
		if errors.Is(err, retry.ErrTimeout) {
			return apperrors.NewLoginTimeoutError(err)
		}
		return err
	}

	r.log.InfoContext(ctx, "Login succeeded")
	return nil
}

// resolve performs LOGGED_IN → ENTITY_RESOLVED.
func (r *run) resolve(ctx context.Context, name string) (string, error) {
	r.log.InfoContext(ctx, "Looking up product", slog.String("product", name))
	if err := r.navigate(ctx, r.baseURL+ListingPath); err != nil {
		return "", err
	}

	if err := r.waitExists(ctx, selListingReady, r.p.waits.Listing); err != nil {
		if errors.Is(err, retry.ErrTimeout) {
			r.log.WarnContext(ctx, "Product listing did not load")
			return "", apperrors.NewEntityNotFoundError(name)
		}
		return "", err
	}

	links, err := r.sess.Links(ctx, selEntityLinks)
	if err != nil {
		return "", err
	}
	id, ok := ResolveEntity(links, name)
	if !ok {
		return "", apperrors.NewEntityNotFoundError(name)
	}
	r.log.InfoContext(ctx, "Found product", slog.String("product", name), slog.String("id", id))
	return id, nil
}

// export performs one EXPORTING(target) step and returns the renamed file.
func (r *run) export(ctx context.Context, spec domain.TargetSpec, id, entityName, reportID string, w *download.Watcher) (path string, err error) {
	defer func() { r.p.tracer.RecordExport(ctx, string(spec.Target), err) }()

	r.log.InfoContext(ctx, "Exporting", slog.String("label", spec.Label))
	for _, u := range spec.ContextURLs(r.baseURL, id) {
		r.log.InfoContext(ctx, "Visiting page", slog.String("url", u))
		if err := r.navigate(ctx, u); err != nil {
			return "", err
		}
	}

	before, err := download.Snapshot(r.dir)
	if err != nil {
		return "", apperrors.NewStorageError("cannot list download directory", err)
	}

	exportURL := spec.ExportURL(r.baseURL, id)
	r.log.InfoContext(ctx, "Opening export form", slog.String("url", exportURL))
	if err := r.navigate(ctx, exportURL); err != nil {
		return "", err
	}
	if err := r.waitVisible(ctx, selExportForm, r.p.waits.Form); err != nil {
		if errors.Is(err, retry.ErrTimeout) {
			return "", apperrors.NewNavigationError(exportURL, err)
		}
		return "", err
	}

	if name, err := browser.FirstOf(ctx, r.sess, fileTypeStrategies...); err != nil {
		if err := r.warnUnlessCancelled(ctx, "xlsx file type option not found", err); err != nil {
			return "", err
		}
	} else {
		r.log.InfoContext(ctx, "File type set to xlsx", slog.String("via", name))
	}

	if name, err := browser.FirstOf(ctx, r.sess, rowScopeStrategies...); err != nil {
		if err := r.warnUnlessCancelled(ctx, "All-records option not found", err); err != nil {
			return "", err
		}
	} else {
		r.log.InfoContext(ctx, "Exporting all records", slog.String("via", name))
	}

	if err := r.selectTemplate(ctx, spec.TemplateKeyword); err != nil {
		if err := r.warnUnlessCancelled(ctx, "Template selection failed, using the default template", err); err != nil {
			return "", err
		}
	}

	r.log.InfoContext(ctx, "Submitting export form")
	if err := r.sess.Submit(ctx, selExportForm); err != nil {
		return "", err
	}
	if err := r.awaitLoading(ctx); err != nil {
		return "", err
	}
	if loc, err := r.sess.Location(ctx); err == nil {
		r.log.InfoContext(ctx, "Current page", slog.String("url", loc))
	}

	started := time.Now()
	target := download.TargetName(entityName, spec.Label, reportID, exportExt)
	path, err = w.Await(ctx, before, target)
	if err != nil {
		if errors.Is(err, apperrors.ErrDownloadTimeout) {
			r.saveDiagnostic(ctx, spec.Label)
		}
		return "", err
	}
	r.p.tracer.RecordDownloadWait(ctx, string(spec.Target), time.Since(started))
	infrastructure.AddSpanEvent(ctx, "download.renamed", map[string]string{
		"target": string(spec.Target),
		"file":   filepath.Base(path),
	})
	return path, nil
}

// selectTemplate picks the export template in the searchable combo box.
func (r *run) selectTemplate(ctx context.Context, keyword string) error {
	if keyword == "" {
		r.log.InfoContext(ctx, "No template keyword, using the default template")
		return nil
	}
	r.log.InfoContext(ctx, "Selecting template", slog.String("keyword", keyword))

	if err := r.waitVisible(ctx, selTemplateBox, r.p.waits.Template); err != nil {
		return err
	}
	if err := r.sess.Click(ctx, selTemplateOpen); err != nil {
		return err
	}
	if err := r.waitVisible(ctx, selTemplateFind, r.p.waits.Template); err != nil {
		return err
	}
	if err := r.sess.SendKeys(ctx, selTemplateFind, keyword); err != nil {
		return err
	}
	if err := r.sess.SendKeys(ctx, selTemplateFind, browser.Enter); err != nil {
		return err
	}

	var shown string
	err := r.policy(r.p.waits.Template).Until(ctx, func(ctx context.Context) (bool, error) {
		text, err := r.sess.Text(ctx, selTemplateText)
		shown = text
		return strings.Contains(text, keyword), err
	})
	if err != nil {
		return err
	}
	r.log.InfoContext(ctx, "Template selected", slog.String("shown", shown))
	return nil
}

// awaitLoading waits for the loading indicator to come and go. Neither is
// required.
func (r *run) awaitLoading(ctx context.Context) error {
	err := r.waitExists(ctx, selLoading, r.p.waits.LoadingAppear)
	if err != nil {
		return r.warnUnlessCancelled(ctx, "Loading indicator did not appear, checking for the download", err)
	}

	err = r.policy(r.p.waits.LoadingGone).Until(ctx, func(ctx context.Context) (bool, error) {
		visible, err := r.sess.Visible(ctx, selLoading)
		return !visible, err
	})
	if err != nil {
		return r.warnUnlessCancelled(ctx, "Loading indicator did not disappear, checking for the download", err)
	}
	r.log.InfoContext(ctx, "Loading finished")
	return nil
}

func (r *run) saveDiagnostic(ctx context.Context, label string) {
	html, err := r.sess.HTML(context.WithoutCancel(ctx))
	if err != nil {
		r.log.WarnContext(ctx, "Could not read page source", slog.String("error", err.Error()))
		return
	}
	path, err := download.WriteDiagnostic(r.dir, label, html)
	if err != nil {
		r.log.WarnContext(ctx, "Could not save page source", slog.String("error", err.Error()))
		return
	}
	r.log.ErrorContext(ctx, "Download timed out, page source saved", slog.String("file", path))
}
