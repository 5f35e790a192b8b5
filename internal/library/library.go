// Package library is the on-disk ripped-track index of spec.md §1's
// "on-disk library rebuild scan" collaborator, grounded on the original
// implementation's hifi_appliance/db/db.py (a pickledb-backed flat
// key-value store rebuilt by periodic directory walk). No key-value
// store or embedded database appears anywhere in this module's
// dependency corpus, so the index persists as a single JSON file the
// same way pickledb itself does on disk — see DESIGN.md.
package library

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var trackFilePattern = regexp.MustCompile(`(?i)^\d\d .*\.flac$`)

// discEntry is one disc's persisted record.
type discEntry struct {
	TrackFiles []string `json:"track_files"`
}

// Index is the in-memory, disk-backed library index. HasDisc/TrackList
// satisfy commander.LibraryIndex.
type Index struct {
	mu       sync.RWMutex
	discs    map[string]discEntry
	dbPath   string
	musicDir string
}

// New creates an Index backed by dbPath, scanning musicDir for an
// initial build if dbPath does not yet exist — mirroring TrackDB's
// constructor.
func New(dbPath, musicDir string) *Index {
	idx := &Index{
		discs:    make(map[string]discEntry),
		dbPath:   dbPath,
		musicDir: musicDir,
	}
	if _, err := os.Stat(dbPath); err != nil {
		idx.Rebuild()
	} else if err := idx.load(); err != nil {
		slog.Warn("library: failed to load existing index, rebuilding", "error", err)
		idx.Rebuild()
	}
	return idx
}

// HasDisc reports whether discID is indexed.
func (idx *Index) HasDisc(discID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.discs[discID]
	return ok
}

// TrackList returns the ripped track paths for discID, or nil if
// unindexed.
func (idx *Index) TrackList(discID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.discs[discID]
	if !ok {
		return nil
	}
	out := make([]string, len(entry.TrackFiles))
	copy(out, entry.TrackFiles)
	return out
}

// Count returns the number of indexed discs.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.discs)
}

// Rebuild walks musicDir and replaces the whole index, matching
// TrackDB.rebuild's full-scan-then-swap policy. A disc is indexed iff
// a .disc_id marker is present alongside at least one "NN *.flac"
// (case-insensitive) file, per spec.md §6's on-disk library layout.
func (idx *Index) Rebuild() {
	slog.Info("library: rebuilding track index")

	discs := make(map[string]discEntry)

	entries, err := dirsWithMarker(idx.musicDir)
	if err != nil {
		slog.Error("library: rebuild scan failed", "error", err)
		return
	}

	for _, dir := range entries {
		discID, err := readDiscIDMarker(dir)
		if err != nil {
			continue
		}
		trackFiles := findTrackFiles(dir)
		if len(trackFiles) == 0 {
			continue
		}
		discs[discID] = discEntry{TrackFiles: trackFiles}
	}

	idx.mu.Lock()
	idx.discs = discs
	idx.mu.Unlock()

	if err := idx.persist(); err != nil {
		slog.Error("library: failed to persist index", "error", err)
	}

	slog.Info("library: track index rebuilt", "discs_indexed", len(discs))
}

// RunPeriodicRebuild blocks, calling Rebuild every interval until stop
// is closed — the background scan spec.md §5's shared-resource-policy
// note describes.
func (idx *Index) RunPeriodicRebuild(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			idx.Rebuild()
		case <-stop:
			return
		}
	}
}

func dirsWithMarker(root string) ([]string, error) {
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if _, statErr := os.Stat(filepath.Join(path, ".disc_id")); statErr == nil {
				dirs = append(dirs, path)
			}
		}
		return nil
	})
	return dirs, err
}

func readDiscIDMarker(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, ".disc_id"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func findTrackFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var tracks []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if trackFilePattern.MatchString(e.Name()) {
			tracks = append(tracks, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(tracks)
	return tracks
}

func (idx *Index) persist() error {
	idx.mu.RLock()
	data, err := json.Marshal(idx.discs)
	idx.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(idx.dbPath, data, 0o644)
}

func (idx *Index) load() error {
	data, err := os.ReadFile(idx.dbPath)
	if err != nil {
		return err
	}
	discs := make(map[string]discEntry)
	if err := json.Unmarshal(data, &discs); err != nil {
		return err
	}
	idx.mu.Lock()
	idx.discs = discs
	idx.mu.Unlock()
	return nil
}
