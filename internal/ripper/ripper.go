// Package ripper implements the Ripper state machine of spec.md §4.3,
// grounded line-for-line on the original implementation's
// hifi_appliance/state/ripper.py (a python-transitions Machine). As with
// the Player, no state-machine library exists anywhere in this module's
// dependency corpus, so the transition table is hand-rolled the same way.
package ripper

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pisarenko-net/cdpsa/internal/domain"
)

const (
	triggerStart     = "start"
	triggerKnownDisc = "known_disc"
	triggerRipTrack  = "rip_track"
	triggerFinish    = "finish"
	triggerEject     = "eject"
)

type transition struct {
	from   []domain.RipperStateTag // nil means "*" (any state)
	to     domain.RipperStateTag
	trigger string
	guard  func(r *Ripper) bool
	effect func(r *Ripper) error
}

// Extractor pulls one track's raw audio off the optical device in
// paranoid/quiet mode and pipes it through a lossless encoder, the
// out-of-scope "external grab+convert pipeline" spec.md §4.3 names.
// It returns the path to a temporary encoded file.
type Extractor interface {
	ExtractTrack(trackNumber int) (tmpPath string, err error)
}

// Tagger writes (artist, title, album, track number, total tracks) into
// an encoded file in place — the out-of-scope tag writer collaborator.
type Tagger interface {
	WriteTags(path, artist, title, album string, trackNumber, totalTracks int) error
}

// FileMover is the out-of-scope filesystem collaborator: create the
// destination folder and move the tagged temp file into it.
type FileMover interface {
	MkdirAll(path string) error
	Move(src, dst string) error
	WriteFile(path string, data []byte) error
}

// Ripper is the sequential track-extraction pipeline of spec.md §4.3.
// All exported triggers serialize on mu, matching the Player's
// single-threaded-event-loop discipline; per spec.md §4.3's
// "Concurrency" note, rip_track itself runs on the caller's own
// goroutine rather than blocking a shared command receiver — callers
// are expected to invoke RipTrack from a dedicated goroutine, not from
// the same goroutine that also delivers eject.
type Ripper struct {
	mu sync.Mutex

	state             domain.RipperStateTag
	discMeta          domain.DiscMeta
	hasDiscMeta       bool
	currentTrackIndex int
	folderPath        string
	trackList         []string

	cfg Config

	extractor Extractor
	tagger    Tagger
	mover     FileMover

	afterStateChange func(domain.RipperState)

	transitions []transition
}

// Config carries the destination path templates spec.md §4.3 describes.
// Templates are configurable; sanitisation is not.
type Config struct {
	AlbumFolderTemplate   string // e.g. "{artist} - {title}"
	VAAlbumFolderTemplate string // e.g. "{title}"
	TrackFileTemplate     string // e.g. "{track_number} {artist} - {title}"
	LibraryRoot           string
	CodecExt              string // e.g. "flac"
}

// New creates a Ripper in state IDLE.
func New(cfg Config, extractor Extractor, tagger Tagger, mover FileMover, afterStateChange func(domain.RipperState)) *Ripper {
	r := &Ripper{
		state:            domain.RipperIdle,
		cfg:              cfg,
		extractor:        extractor,
		tagger:           tagger,
		mover:            mover,
		afterStateChange: afterStateChange,
	}
	r.transitions = buildTransitionTable()
	return r
}

// State returns the full exported snapshot, matching the original's
// get_full_state().
func (r *Ripper) State() domain.RipperState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Ripper) snapshotLocked() domain.RipperState {
	trackList := make([]string, len(r.trackList))
	copy(trackList, r.trackList)

	s := domain.RipperState{
		State:             r.state,
		CurrentTrackIndex: r.currentTrackIndex,
		DestinationFolder: r.folderPath,
		TrackList:         trackList,
	}
	if r.hasDiscMeta {
		meta := r.discMeta.Clone()
		s.DiscMeta = &meta
	}
	return s
}

// --- External triggers ---

func (r *Ripper) Start(meta domain.DiscMeta) error { return r.fire(triggerStart, meta) }
func (r *Ripper) KnownDisc() error                 { return r.fire(triggerKnownDisc, domain.DiscMeta{}) }
func (r *Ripper) Eject() error                      { return r.fire(triggerEject, domain.DiscMeta{}) }

// RipTrack extracts, tags, and moves the next track, guarded by
// current_track_index < len(tracks). It is the only trigger expected to
// block for any meaningful time — the subprocess pipeline spec.md §4.3
// describes — so callers should invoke it from a dedicated goroutine
// rather than the bus dispatch loop.
func (r *Ripper) RipTrack() error { return r.fire(triggerRipTrack, domain.DiscMeta{}) }

// Finish writes the disc-id marker, guarded by
// current_track_index == len(tracks).
func (r *Ripper) Finish() error { return r.fire(triggerFinish, domain.DiscMeta{}) }

// fire evaluates the transition table, firing the first matching
// guard-satisfying entry for the current state. An effect error aborts
// the transition: state does not advance and the error is returned to
// the caller instead of being escalated as a panic, matching spec.md
// §7's "surfaced as a state transition... rather than an exception
// upward" policy at the call site owning the retry.
func (r *Ripper) fire(trigger string, meta domain.DiscMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.transitions {
		if t.trigger != trigger {
			continue
		}
		if t.from != nil && !containsState(t.from, r.state) {
			continue
		}
		if t.guard != nil && !t.guard(r) {
			continue
		}

		if trigger == triggerStart {
			r.discMeta = meta.Clone()
			r.hasDiscMeta = true
		}

		if t.effect != nil {
			if err := t.effect(r); err != nil {
				slog.Error("ripper: effect failed", "trigger", trigger, "error", err)
				return err
			}
		}
		if t.to != "" {
			r.state = t.to
		}
		if r.afterStateChange != nil {
			r.afterStateChange(r.snapshotLocked())
		}
		return nil
	}

	slog.Debug("ripper: trigger rejected in current state", "trigger", trigger, "state", r.state)
	return nil
}

func containsState(states []domain.RipperStateTag, s domain.RipperStateTag) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}

func buildTransitionTable() []transition {
	idle := domain.RipperIdle
	known := domain.RipperKnownDisc
	ripping := domain.RipperRipping
	done := domain.RipperDone

	return []transition{
		// terminal state: disc already ripped
		{from: []domain.RipperStateTag{idle}, to: known, trigger: triggerKnownDisc},

		{
			from:   []domain.RipperStateTag{idle},
			to:     ripping,
			trigger: triggerStart,
			effect: effectSetDiscMetaAndCreateFolder,
		},

		{
			from:   []domain.RipperStateTag{ripping},
			to:     ripping,
			trigger: triggerRipTrack,
			guard:  guardHasNextTrack,
			effect: effectRipNextTrack,
		},

		// terminal state: disc ripped successfully
		{
			from:   []domain.RipperStateTag{ripping},
			to:     done,
			trigger: triggerFinish,
			guard:  func(r *Ripper) bool { return !guardHasNextTrack(r) },
			effect: effectStoreDiscID,
		},

		{from: nil, to: idle, trigger: triggerEject, effect: effectClearInternalState},
	}
}

// --- Guards ---

func guardHasNextTrack(r *Ripper) bool {
	return r.hasDiscMeta && r.currentTrackIndex < len(r.discMeta.Tracks)
}

// --- Effects ---

func effectSetDiscMetaAndCreateFolder(r *Ripper) error {
	r.trackList = nil
	r.currentTrackIndex = 0
	r.folderPath = destinationFolder(r.cfg, r.discMeta)
	return r.mover.MkdirAll(r.folderPath)
}

// effectRipNextTrack mirrors rip_next_track: extract, tag, move, append
// to the track list, advance the index.
func effectRipNextTrack(r *Ripper) error {
	trackNumber := r.currentTrackIndex + 1
	slog.Info("ripper: ripping track", "track_number", trackNumber)

	tmpPath, err := r.extractor.ExtractTrack(trackNumber)
	if err != nil {
		return fmt.Errorf("ripper: extract track %d: %w", trackNumber, err)
	}

	meta := r.discMeta.Tracks[trackNumber-1]
	if err := r.tagger.WriteTags(tmpPath, meta.Artist, meta.Title, r.discMeta.Title, trackNumber, len(r.discMeta.Tracks)); err != nil {
		return fmt.Errorf("ripper: tag track %d: %w", trackNumber, err)
	}

	targetPath := filepath.Join(r.folderPath, trackFilename(r.cfg, meta, trackNumber))
	if err := r.mover.Move(tmpPath, targetPath); err != nil {
		return fmt.Errorf("ripper: move track %d: %w", trackNumber, err)
	}

	r.trackList = append(r.trackList, targetPath)
	r.currentTrackIndex = trackNumber
	return nil
}

// effectStoreDiscID writes the hidden marker file the library scanner
// keys its rebuild off of.
func effectStoreDiscID(r *Ripper) error {
	path := filepath.Join(r.folderPath, ".disc_id")
	return r.mover.WriteFile(path, []byte(r.discMeta.DiscID))
}

// effectClearInternalState mirrors _clear_internal_state. Any
// in-flight extractor subprocess for the current track is left to the
// caller to abandon — the on-disk partial temp file is leaked, matching
// the original's no-op cleanup (documented Open Question decision).
func effectClearInternalState(r *Ripper) error {
	r.hasDiscMeta = false
	r.discMeta = domain.DiscMeta{}
	r.trackList = nil
	r.currentTrackIndex = 0
	r.folderPath = ""
	return nil
}

// --- Destination path policy (spec.md §4.3) ---

func destinationFolder(cfg Config, meta domain.DiscMeta) string {
	var leaf string
	if !meta.VariousArtists() {
		leaf = expandTemplate(cfg.AlbumFolderTemplate, map[string]string{
			"artist": meta.Artist,
			"title":  meta.Title,
		})
	} else {
		leaf = expandTemplate(cfg.VAAlbumFolderTemplate, map[string]string{
			"title": meta.Title,
		})
	}
	path := filepath.Join(cfg.LibraryRoot, sanitize(leaf))
	if meta.TotalCDs > 1 {
		path = filepath.Join(path, fmt.Sprintf("CD%d", meta.CD))
	}
	return path
}

func trackFilename(cfg Config, track domain.Track, trackNumber int) string {
	name := expandTemplate(cfg.TrackFileTemplate, map[string]string{
		"track_number": fmt.Sprintf("%02d", trackNumber),
		"artist":       track.Artist,
		"title":        track.Title,
	})
	return sanitize(name) + "." + cfg.CodecExt
}

func expandTemplate(tmpl string, fields map[string]string) string {
	out := tmpl
	for key, value := range fields {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

// sanitize replaces path-separator characters and colon with a space.
// This is the one part of the destination path policy that is not
// configurable.
func sanitize(name string) string {
	r := strings.NewReplacer("\\", " ", "/", " ", ":", " ")
	return r.Replace(name)
}
