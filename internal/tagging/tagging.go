// Package tagging is the out-of-scope tag writer collaborator spec.md
// §1 names, grounded on the original implementation's
// hifi_appliance/meta/mutagen.py write_meta function. dhowden/tag, this
// corpus's only tag library, is read-only, so writing stays on the
// standard library's FLAC-comment layout knowledge rather than a
// third-party writer — see DESIGN.md.
package tagging

import (
	"strconv"

	"github.com/pisarenko-net/cdpsa/internal/vorbiscomment"
)

// Writer satisfies ripper.Tagger.
type Writer struct{}

// New returns the default Writer.
func New() *Writer {
	return &Writer{}
}

// WriteTags rewrites a FLAC file's VORBIS_COMMENT metadata block in
// place, matching write_meta's five fields.
func (w *Writer) WriteTags(path, artist, title, album string, trackNumber, totalTracks int) error {
	return vorbiscomment.Write(path, map[string]string{
		"ARTIST":      artist,
		"TITLE":       title,
		"ALBUM":       album,
		"TRACKNUMBER": strconv.Itoa(trackNumber),
		"TRACKTOTAL":  strconv.Itoa(totalTracks),
	})
}
