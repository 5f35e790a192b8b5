// Package metadata resolves DiscMeta either from a known disc's own
// ripped-file tags (local.go, grounded on the original implementation's
// hifi_appliance/meta/mutagen.py) or from an online database
// (remote.go, grounded on hifi_appliance/meta/musicbrainz.py).
package metadata

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"

	"github.com/pisarenko-net/cdpsa/internal/domain"
	"github.com/pisarenko-net/cdpsa/internal/pcm"
)

// LocalReader satisfies commander.LocalMetadata: it reads (artist,
// title, album) from each ripped file's own tags via dhowden/tag, and
// duration in PCM frames by decoding the file through the same
// Converter the Audio Sink uses — the corpus has no tag library that
// also reports audio duration, so duration is derived from an actual
// decode rather than from a tag field, matching OQ3's frame-convention
// resolution (see SPEC_FULL.md §4).
type LocalReader struct {
	converter pcm.Converter
}

// NewLocalReader wraps converter, typically pcm.NewFileConverter().
func NewLocalReader(converter pcm.Converter) *LocalReader {
	return &LocalReader{converter: converter}
}

// Query reads disc-level and per-track metadata from trackFiles' own
// tags, mirroring MutagenTagReader.query.
func (r *LocalReader) Query(discID string, trackFiles []string) (domain.DiscMeta, bool) {
	meta := domain.DiscMeta{DiscID: discID}

	artists := make(map[string]struct{})

	for _, path := range trackFiles {
		track, album, artist, err := readTags(path)
		if err != nil {
			return domain.DiscMeta{}, false
		}

		_, frames, err := r.converter.Convert(path)
		if err != nil {
			return domain.DiscMeta{}, false
		}

		meta.Tracks = append(meta.Tracks, domain.Track{
			Artist:         track.artist,
			Title:          track.title,
			DurationFrames: frames,
		})
		meta.Title = album
		artists[artist] = struct{}{}
	}

	if len(artists) == 1 {
		for a := range artists {
			meta.Artist = a
		}
	}
	// len(artists) > 1 leaves Artist empty: VariousArtists() per domain.go.

	for _, t := range meta.Tracks {
		meta.DurationFrames += t.DurationFrames
	}

	return meta, true
}

type trackTags struct {
	artist string
	title  string
}

func readTags(path string) (trackTags, string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return trackTags{}, "", "", fmt.Errorf("metadata: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return trackTags{}, "", "", fmt.Errorf("metadata: read tags %s: %w", path, err)
	}

	return trackTags{artist: m.Artist(), title: m.Title()}, m.Album(), m.Artist(), nil
}

