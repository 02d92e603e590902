package bugquery

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	apperrors "zentaocli/internal/errors"
	api "zentaocli/pkg/contracts/api/v1"
	"zentaocli/pkg/contracts/domain"
)

// DefaultWindow is the opened-date range a query covers when the caller
// gives none.
const DefaultWindow = 30 * 24 * time.Hour

const dayLayout = "2006-01-02"

// DefaultRange returns the default From and To dates ending at now
func DefaultRange(now time.Time) (string, string) {
	return now.Add(-DefaultWindow).Format(dayLayout), now.Format(dayLayout)
}

// Filter selects bug records. A set Status overrides the Include flags; the
// zero Filter keeps only bugs that are neither resolved nor closed.
type Filter struct {
	Status          string
	Severity        int
	From            string
	To              string
	IncludeResolved bool
	IncludeClosed   bool

	where *vm.Program
}

// NewFilter builds the filter of req, compiling its where expression.
func NewFilter(req api.BugQueryRequest) (*Filter, error) {
	f := &Filter{
		Status:          req.Status,
		Severity:        req.Severity,
		From:            req.From,
		To:              req.To,
		IncludeResolved: req.IncludeResolved,
		IncludeClosed:   req.IncludeClosed,
	}
	if req.Where == "" {
		return f, nil
	}

	program, err := expr.Compile(req.Where, expr.Env(Env(domain.BugRecord{})), expr.AsBool())
	if err != nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("invalid where expression: %v", err)).
			WithContext("where", req.Where)
	}
	f.where = program
	return f, nil
}

// Env exposes a record to where expressions. severity is the numeric level;
// severity_label keeps the text as shown by the service.
func Env(b domain.BugRecord) map[string]any {
	return map[string]any{
		"id":             b.ID,
		"title":          b.Title,
		"status":         b.Status,
		"severity":       b.SeverityLevel(),
		"severity_label": b.Severity,
		"opened_by":      b.OpenedBy,
		"opened_date":    b.OpenedDate,
		"opened_day":     b.OpenedDay(),
		"assigned_to":    b.AssignedTo,
	}
}

// Match reports whether b passes every criterion of the filter.
func (f *Filter) Match(b domain.BugRecord) (bool, error) {
	if f.Status != "" {
		if b.Status != f.Status {
			return false, nil
		}
	} else {
		if b.Status == domain.BugStatusResolved && !f.IncludeResolved {
			return false, nil
		}
		if b.Status == domain.BugStatusClosed && !f.IncludeClosed {
			return false, nil
		}
	}

	if f.Severity > 0 && b.SeverityLevel() != f.Severity {
		return false, nil
	}

	day := b.OpenedDay()
	if f.From != "" && day < f.From {
		return false, nil
	}
	if f.To != "" && day > f.To {
		return false, nil
	}

	if f.where == nil {
		return true, nil
	}
	out, err := expr.Run(f.where, Env(b))
	if err != nil {
		return false, fmt.Errorf("where expression on bug %s: %w", b.ID, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply returns the records that match, in their original order.
func (f *Filter) Apply(records []domain.BugRecord) ([]domain.BugRecord, error) {
	out := make([]domain.BugRecord, 0, len(records))
	for _, b := range records {
		ok, err := f.Match(b)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// Info describes the query req for the summary sheet of an export.
func Info(req api.BugQueryRequest, count int, now time.Time) domain.BugQueryInfo {
	status := req.Status
	if status == "" {
		status = "全部"
	}
	severity := "全部"
	if label, ok := domain.SeverityLabels[req.Severity]; ok {
		severity = label
	}
	return domain.BugQueryInfo{
		QueriedAt: now,
		Operator:  req.Operator,
		Product:   req.ProductName,
		Status:    status,
		Severity:  severity,
		From:      req.From,
		To:        req.To,
		Count:     count,
	}
}
