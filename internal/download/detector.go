// Package download finds files a browser dropped into a directory, waits
// for them to finish growing and moves them to a deterministic name.
package download

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// PartialSuffixes mark files a browser is still writing.
var PartialSuffixes = []string{".part", ".crdownload", ".tmp"}

// Entry is one regular file in the download directory.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Set is a snapshot of file names.
type Set map[string]struct{}

// Has reports whether name was present in the snapshot
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// List returns the regular files in dir. Entries that vanish while listing
// are skipped.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// Snapshot records the names currently in dir.
func Snapshot(dir string) (Set, error) {
	entries, err := List(dir)
	if err != nil {
		return nil, err
	}
	set := make(Set, len(entries))
	for _, e := range entries {
		set[e.Name] = struct{}{}
	}
	return set, nil
}

// SelectCandidate picks the newest complete download among entries: not in
// before, ending in ext, no partial suffix, nonzero size. Ties on mtime go
// to the lexically greater name so the choice is stable.
func SelectCandidate(entries []Entry, before Set, ext string) (Entry, bool) {
	ext = "." + strings.TrimPrefix(strings.ToLower(ext), ".")

	var candidates []Entry
	for _, e := range entries {
		lower := strings.ToLower(e.Name)
		if before.Has(e.Name) || !strings.HasSuffix(lower, ext) || isPartial(lower) || e.Size <= 0 {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return Entry{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].ModTime.Equal(candidates[j].ModTime) {
			return candidates[i].ModTime.After(candidates[j].ModTime)
		}
		return candidates[i].Name > candidates[j].Name
	})
	return candidates[0], true
}

func isPartial(lowerName string) bool {
	for _, suffix := range PartialSuffixes {
		if strings.HasSuffix(lowerName, suffix) {
			return true
		}
	}
	return false
}
