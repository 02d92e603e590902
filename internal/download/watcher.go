package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "zentaocli/internal/errors"
	"zentaocli/internal/retry"
)

// Policies groups the three retry policies a Watcher uses.
type Policies struct {
	// Poll bounds the whole wait. Its Timeout is the download timeout.
	Poll retry.Policy
	// Stability decides when a candidate stopped growing.
	Stability retry.Policy
	// Rename retries the final move while the file is locked.
	Rename retry.Policy
}

// DefaultPolicies returns 2s polling with a 50s cap, 5 one-second samples
// within 30s, and 10 rename attempts 500ms apart.
func DefaultPolicies() Policies {
	return Policies{
		Poll:      retry.Policy{Interval: 2 * time.Second, Timeout: 50 * time.Second},
		Stability: retry.Policy{Interval: time.Second, Timeout: 30 * time.Second, Stability: 5},
		Rename:    retry.Policy{Interval: 500 * time.Millisecond, Attempts: 10},
	}
}

// Watcher waits for one new file in Dir and renames it.
type Watcher struct {
	Dir      string
	Ext      string
	Policies Policies
	logger   *slog.Logger
}

// NewWatcher creates a watcher for .ext files in dir
func NewWatcher(dir, ext string, policies Policies, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		Dir:      dir,
		Ext:      ext,
		Policies: policies,
		logger:   logger,
	}
}

// Await polls Dir for a file absent from before, waits until its size is
// stable and renames it to target (a bare file name). It returns the final
// path. The Poll timeout bounds the whole wait, settling included. Timeouts
// are reported as DownloadTimeout and exhausted renames as RenameFailed.
func (w *Watcher) Await(ctx context.Context, before Set, target string) (string, error) {
	finalPath := filepath.Join(w.Dir, target)
	w.logger.InfoContext(ctx, "Waiting for download", slog.String("dir", filepath.Base(w.Dir)))

	var deadline time.Time
	if w.Policies.Poll.Timeout > 0 {
		deadline = time.Now().Add(w.Policies.Poll.Timeout)
	}

	var renamed bool
	err := w.Policies.Poll.Until(ctx, func(ctx context.Context) (bool, error) {
		entries, err := List(w.Dir)
		if err != nil {
			return false, err
		}
		candidate, ok := SelectCandidate(entries, before, w.Ext)
		if !ok {
			return false, nil
		}

		src := filepath.Join(w.Dir, candidate.Name)
		w.logger.InfoContext(ctx, "Detected new file, waiting for size to settle", slog.String("file", candidate.Name))

		// Settling never runs past the download timeout.
		stability := w.Policies.Stability
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return false, nil
			}
			if stability.Timeout <= 0 || remaining < stability.Timeout {
				stability.Timeout = remaining
			}
		}
		size, err := stability.Stabilize(ctx, func() (int64, error) {
			info, err := os.Stat(src)
			if err != nil {
				return 0, err
			}
			return info.Size(), nil
		})
		if errors.Is(err, retry.ErrUnstable) || os.IsNotExist(err) {
			w.logger.InfoContext(ctx, "File size not stable yet, still waiting", slog.String("file", candidate.Name))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		w.logger.InfoContext(ctx, "File size stable", slog.String("file", candidate.Name), slog.Int64("bytes", size))

		if err := w.moveInto(ctx, src, finalPath); err != nil {
			return false, err
		}
		renamed = true
		return true, nil
	})

	switch {
	case err == nil && renamed:
		return finalPath, nil
	case errors.Is(err, retry.ErrTimeout):
		return "", apperrors.NewDownloadTimeoutError(target, err)
	case err != nil:
		return "", err
	default:
		return "", apperrors.NewDownloadTimeoutError(target, nil)
	}
}

// moveInto replaces dst with src, retrying the rename while it fails.
func (w *Watcher) moveInto(ctx context.Context, src, dst string) error {
	w.logger.InfoContext(ctx, "Target file name", slog.String("file", filepath.Base(dst)))

	if _, err := os.Stat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			w.logger.ErrorContext(ctx, "Could not remove existing file, trying rename anyway",
				slog.String("file", filepath.Base(dst)),
				slog.String("error", err.Error()))
		} else {
			w.logger.InfoContext(ctx, "Removed existing file", slog.String("file", filepath.Base(dst)))
		}
	}

	attempts := w.Policies.Rename.Attempts
	err := w.Policies.Rename.Do(ctx, func(attempt int) error {
		err := os.Rename(src, dst)
		if err != nil {
			w.logger.WarnContext(ctx, "Rename failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.String("error", err.Error()))
		}
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.NewRenameError(filepath.Base(src), fmt.Errorf("after %d attempts: %w", attempts, err))
	}

	w.logger.InfoContext(ctx, "File renamed", slog.String("path", dst))
	return nil
}
