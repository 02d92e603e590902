package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var unsafeChars = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// Sanitize replaces characters that are not allowed in file names.
func Sanitize(s string) string {
	return unsafeChars.Replace(s)
}

// TargetName builds {entity}_{label}[_({reportID})].{ext}. An empty entity
// is left out.
func TargetName(entity, label, reportID, ext string) string {
	parts := make([]string, 0, 3)
	if entity != "" {
		parts = append(parts, Sanitize(entity))
	}
	parts = append(parts, label)
	if reportID != "" {
		parts = append(parts, "("+reportID+")")
	}
	return strings.Join(parts, "_") + "." + strings.TrimPrefix(ext, ".")
}

// DiagnosticName is the file the page source is saved to when a download
// never arrives.
func DiagnosticName(label string) string {
	return "export_timeout_error_" + strings.ReplaceAll(label, " ", "_") + ".html"
}

// WriteDiagnostic saves html next to the downloads and returns its path.
func WriteDiagnostic(dir, label, html string) (string, error) {
	path := filepath.Join(dir, DiagnosticName(label))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write diagnostic page: %w", err)
	}
	return path, nil
}
