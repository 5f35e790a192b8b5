package tagging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalFlacFile(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.WriteByte(0x80) // STREAMINFO, last block
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(34)
	buf.Write(make([]byte, 34))
	buf.Write([]byte("audio"))

	path := filepath.Join(t.TempDir(), "track.flac")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestWriteTagsWritesFiveFields(t *testing.T) {
	path := minimalFlacFile(t)
	w := New()

	err := w.WriteTags(path, "Artist", "Title", "Album", 3, 12)
	require.NoError(t, err)

	out, err := os.ReadFile(path)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "ARTIST=Artist")
	assert.Contains(t, s, "TITLE=Title")
	assert.Contains(t, s, "ALBUM=Album")
	assert.Contains(t, s, "TRACKNUMBER=3")
	assert.Contains(t, s, "TRACKTOTAL=12")
}
