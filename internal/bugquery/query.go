// Package bugquery lists the bugs of one ZenTao product and filters them.
package bugquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zentaocli/internal/browser"
	"zentaocli/internal/config"
	apperrors "zentaocli/internal/errors"
	"zentaocli/internal/operations"
	"zentaocli/internal/retry"
	api "zentaocli/pkg/contracts/api/v1"
	"zentaocli/pkg/contracts/domain"
)

// BrowsePath lists every bug of a product, newest first, on one page.
const BrowsePath = "/bug-browse-%s-0-all-0-id_desc-0-2000-1.html"

const (
	selBugList = "#bugList"
	selBugRows = "#bugList tbody tr"

	progressScraped  = 70
	progressFiltered = 90
)

// bugCells are read from each row in BugRecord field order.
var bugCells = []string{
	"td.c-id",
	"td.c-title",
	"td.c-status",
	"td.c-severity",
	"td.c-openedBy",
	"td.c-openedDate",
	"td.c-assignedTo",
}

// Query signs in with the manager account of req, reads the bug list of
// req.ProductName and returns the bugs that pass the filter.
func Query(ctx context.Context, opener browser.Opener, cfg *config.Config, req api.BugQueryRequest, rep *operations.Reporter, opts ...operations.Option) ([]domain.BugRecord, error) {
	filter, err := NewFilter(req)
	if err != nil {
		return nil, err
	}

	var matched []domain.BugRecord
	p := operations.NewPipeline(cfg, opener, opts...)
	err = p.Visit(ctx, req.Credentials, req.Headless, req.ProductName, rep, func(ctx context.Context, pg *operations.Page) error {
		log := rep.Logger()
		url := pg.BaseURL + fmt.Sprintf(BrowsePath, pg.EntityID)
		log.InfoContext(ctx, "Opening bug list", slog.String("url", url))

		if err := pg.Navigate(ctx, url); err != nil {
			return err
		}
		if err := pg.WaitExists(ctx, selBugList); err != nil {
			if errors.Is(err, retry.ErrTimeout) {
				return apperrors.NewNavigationError(url, err)
			}
			return err
		}

		rows, err := pg.Session.Rows(ctx, selBugRows, bugCells)
		if err != nil {
			return err
		}
		records := ParseRows(rows)
		rep.Progress(progressScraped)
		log.InfoContext(ctx, "Bug list read", slog.Int("bugs", len(records)))

		matched, err = filter.Apply(records)
		if err != nil {
			return err
		}
		rep.Progress(progressFiltered)
		log.InfoContext(ctx, "Bugs matched",
			slog.Int("matched", len(matched)),
			slog.Int("total", len(records)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// ParseRows turns scraped cells into records. Rows without an ID, such as
// the "no data" placeholder row, are dropped.
func ParseRows(rows [][]string) []domain.BugRecord {
	out := make([]domain.BugRecord, 0, len(rows))
	for _, row := range rows {
		cell := func(i int) string {
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		b := domain.BugRecord{
			ID:         cell(0),
			Title:      cell(1),
			Status:     cell(2),
			Severity:   cell(3),
			OpenedBy:   cell(4),
			OpenedDate: cell(5),
			AssignedTo: cell(6),
		}
		if b.ID == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}
