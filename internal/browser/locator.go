package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoStrategy is returned by FirstOf when no strategy located its element.
var ErrNoStrategy = errors.New("no locator strategy matched")

// Strategy is one way of setting a form control. Apply reports whether the
// element was found and set.
type Strategy struct {
	Name  string
	Apply func(ctx context.Context, s Session) (bool, error)
}

// SelectOption picks value in the <select> matched by sel.
func SelectOption(sel, value string) Strategy {
	return Strategy{
		Name: fmt.Sprintf("select %s=%s", sel, value),
		Apply: func(ctx context.Context, s Session) (bool, error) {
			return s.SelectValue(ctx, sel, value)
		},
	}
}

// RadioOption checks the radio input matched by sel.
func RadioOption(sel string) Strategy {
	return Strategy{
		Name: "radio " + sel,
		Apply: func(ctx context.Context, s Session) (bool, error) {
			return s.CheckRadio(ctx, sel)
		},
	}
}

// FirstOf tries strategies in order and returns the name of the first one
// that applied. Errors from a strategy are treated as a miss unless the
// context has ended.
func FirstOf(ctx context.Context, s Session, strategies ...Strategy) (string, error) {
	var errs []error
	for _, st := range strategies {
		ok, err := st.Apply(ctx, s)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.Name, err))
			continue
		}
		if ok {
			return st.Name, nil
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("%w: %w", ErrNoStrategy, errors.Join(errs...))
	}
	return "", ErrNoStrategy
}
