package operations

import (
	"context"
	"log/slog"

	"zentaocli/internal/browser"
	"zentaocli/internal/infrastructure"
	"zentaocli/pkg/contracts/domain"
)

// Page is a signed-in browser session handed to a VisitFunc.
type Page struct {
	Session  browser.Session
	BaseURL  string
	EntityID string
	r        *run
}

// Navigate opens url, honouring the pipeline's navigation pace.
func (pg *Page) Navigate(ctx context.Context, url string) error {
	return pg.r.navigate(ctx, url)
}

// WaitExists polls until sel matches at least one element or timeout passes.
func (pg *Page) WaitExists(ctx context.Context, sel string) error {
	return pg.r.waitExists(ctx, sel, pg.r.p.waits.Listing)
}

// VisitFunc does the work of a Visit on a signed-in page.
type VisitFunc func(ctx context.Context, pg *Page) error

// Visit starts a browser, signs in with creds, resolves product and hands the
// page to fn. The browser is released when Visit returns.
func (p *Pipeline) Visit(ctx context.Context, creds domain.Credentials, headless bool, product string, rep *Reporter, fn VisitFunc) (err error) {
	state := NewRunState(infrastructure.GetRunID(ctx))
	log := rep.Logger()
	defer func() {
		if err != nil {
			state.Fail(err)
			log.ErrorContext(ctx, "Visit failed",
				slog.String("state", state.Current()),
				slog.String("error", err.Error()))
		}
	}()

	r, err := p.start(ctx, state, creds, headless, p.cfg.Download.Dir, rep)
	if err != nil {
		return err
	}
	defer r.close(ctx)

	if err := r.phase(ctx, PhaseLoggedIn, "", func(ctx context.Context) error {
		return r.login(ctx, creds)
	}); err != nil {
		return err
	}

	rep.Progress(ProgressLookup)
	var id string
	if err := r.phase(ctx, PhaseEntityResolved, "", func(ctx context.Context) error {
		id, err = r.resolve(ctx, product)
		return err
	}); err != nil {
		return err
	}
	rep.Progress(ProgressResolved)

	ctx, span := p.tracer.StartPhase(ctx, "VISIT")
	err = fn(ctx, &Page{Session: r.sess, BaseURL: r.baseURL, EntityID: id, r: r})
	p.tracer.EndSpan(span, err)
	if err != nil {
		return err
	}

	if err := state.Advance(PhaseDone, ""); err != nil {
		return err
	}
	rep.Progress(ProgressDone)
	return nil
}
