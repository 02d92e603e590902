package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"zentaocli/internal/download"
	"zentaocli/pkg/contracts/domain"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery looks for workbooks in one directory.
type Discovery struct {
	dir string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(dir string) *Discovery {
	return &Discovery{dir: dir}
}

// FindExcelFiles lists the .xlsx workbooks of the directory, oldest first.
// Office lock files (~$name.xlsx) and empty files are left out.
func (d *Discovery) FindExcelFiles() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.dir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "~$") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(d.dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// Latest returns the most recently modified workbook whose name starts with
// prefix.
func (d *Discovery) Latest(prefix string) (FileInfo, bool, error) {
	files, err := d.FindExcelFiles()
	if err != nil {
		return FileInfo{}, false, err
	}
	var matched []FileInfo
	for _, f := range files {
		if strings.HasPrefix(f.Name, prefix) {
			matched = append(matched, f)
		}
	}
	latest, ok := GetLatestFile(matched)
	return latest, ok, nil
}

// FindExports returns the export of each target for entity, keyed by
// target. With a report id, the file named exactly as the pipeline names it
// wins; otherwise the newest {entity}_{label}* workbook is taken. Targets with no file are
// absent from the map.
func (d *Discovery) FindExports(entity, reportID string) (map[domain.ExportTarget]FileInfo, error) {
	found := make(map[domain.ExportTarget]FileInfo)
	for _, spec := range domain.DefaultTargets(nil) {
		if reportID != "" {
			exact := filepath.Join(d.dir, download.TargetName(entity, spec.Label, reportID, "xlsx"))
			if info, err := os.Stat(exact); err == nil && !info.IsDir() && info.Size() > 0 {
				found[spec.Target] = FileInfo{
					Path:    exact,
					Name:    filepath.Base(exact),
					Size:    info.Size(),
					ModTime: info.ModTime(),
				}
				continue
			}
		}

		prefix := download.TargetName(entity, spec.Label, "", "")
		prefix = strings.TrimSuffix(prefix, ".")
		f, ok, err := d.Latest(prefix)
		if err != nil {
			return nil, err
		}
		if ok {
			found[spec.Target] = f
		}
	}
	return found, nil
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}

	return latest, true
}
