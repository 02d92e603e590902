// Package settings persists per-screen user preferences as small JSON files.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	apperrors "zentaocli/internal/errors"
)

// DefaultSensitiveKeys are never written to disk.
var DefaultSensitiveKeys = []string{"password", "manager_password"}

// Store reads and writes {dir}/{group}.txt files.
type Store struct {
	dir       string
	sensitive map[string]struct{}
	logger    *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithSensitiveKeys replaces the set of keys stripped on Save.
func WithSensitiveKeys(keys ...string) Option {
	return func(s *Store) {
		s.sensitive = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			s.sensitive[strings.ToLower(k)] = struct{}{}
		}
	}
}

// NewStore creates a store rooted at dir
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		logger: slog.Default(),
	}
	WithSensitiveKeys(DefaultSensitiveKeys...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file backing group
func (s *Store) Path(group string) string {
	return filepath.Join(s.dir, group+".txt")
}

// Save writes values as 4-space indented JSON. Sensitive keys are dropped
// with a warning.
func (s *Store) Save(group string, values map[string]any) error {
	if err := validGroup(group); err != nil {
		return err
	}

	clean := make(map[string]any, len(values))
	for k, v := range values {
		if _, secret := s.sensitive[strings.ToLower(k)]; secret {
			s.logger.Warn("Not persisting sensitive setting",
				slog.String("group", group),
				slog.String("key", k))
			continue
		}
		clean[k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(clean); err != nil {
		return apperrors.NewStorageError("encode settings", err).WithContext("group", group)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return apperrors.NewStorageError("create settings dir", err).WithContext("group", group)
	}

	path := s.Path(group)
	if err := os.WriteFile(path, bytes.TrimRight(buf.Bytes(), "\n"), 0644); err != nil {
		return apperrors.NewStorageError("write settings", err).WithContext("group", group)
	}

	s.logger.Info("Settings saved", slog.String("file", filepath.Base(path)))
	return nil
}

// Load returns the stored values for group with missing keys taken from
// defaults. A missing or unreadable file yields defaults. Files that are not
// valid UTF-8 are decoded as GBK and rewritten as UTF-8.
func (s *Store) Load(group string, defaults map[string]any) (map[string]any, error) {
	if err := validGroup(group); err != nil {
		return nil, err
	}

	path := s.Path(group)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.logger.Info("No settings file, using defaults", slog.String("file", filepath.Base(path)))
		return copyMap(defaults), nil
	}
	if err != nil {
		s.logger.Error("Failed to read settings, using defaults",
			slog.String("file", filepath.Base(path)),
			slog.String("error", err.Error()))
		return copyMap(defaults), nil
	}

	legacy := false
	if !utf8.Valid(data) {
		s.logger.Warn("Settings file is not UTF-8, trying GBK", slog.String("file", filepath.Base(path)))
		decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
		if err != nil {
			s.logger.Error("GBK decode failed, using defaults",
				slog.String("file", filepath.Base(path)),
				slog.String("error", err.Error()))
			return copyMap(defaults), nil
		}
		data = decoded
		legacy = true
	}

	var loaded map[string]any
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Error("Failed to parse settings, using defaults",
			slog.String("file", filepath.Base(path)),
			slog.String("error", err.Error()))
		return copyMap(defaults), nil
	}

	if legacy {
		if err := s.Save(group, loaded); err != nil {
			s.logger.Error("Failed to rewrite settings as UTF-8", slog.String("error", err.Error()))
		} else {
			s.logger.Info("Rewrote settings as UTF-8", slog.String("file", filepath.Base(path)))
		}
	}

	out := copyMap(defaults)
	for k, v := range loaded {
		out[k] = v
	}
	return out, nil
}

func validGroup(group string) error {
	if group == "" || strings.ContainsAny(group, `/\`) || group == "." || group == ".." {
		return apperrors.NewAppValidationError(fmt.Sprintf("invalid settings group %q", group))
	}
	return nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
