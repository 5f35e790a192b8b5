package vorbiscomment

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalFlacFile builds a tiny well-formed FLAC container: the magic
// marker, one STREAMINFO block (type 0, arbitrary payload, last-block
// flag set), and a handful of bytes standing in for audio frames.
func minimalFlacFile(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(magic)

	streamInfo := make([]byte, 34)
	header := byte(0) | lastBlockFlag // type 0 (STREAMINFO), last block
	buf.WriteByte(header)
	length := len(streamInfo)
	buf.WriteByte(byte(length >> 16))
	buf.WriteByte(byte(length >> 8))
	buf.WriteByte(byte(length))
	buf.Write(streamInfo)

	buf.Write([]byte("fake-audio-frames"))

	path := filepath.Join(t.TempDir(), "test.flac")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestWriteRejectsNonFlacFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-flac.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	err := Write(path, map[string]string{"ARTIST": "x"})
	assert.Error(t, err)
}

func TestWriteInsertsVorbisCommentAndPreservesAudio(t *testing.T) {
	path := minimalFlacFile(t)

	err := Write(path, map[string]string{
		"ARTIST": "Test Artist",
		"TITLE":  "Test Title",
	})
	require.NoError(t, err)

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(out, []byte("fake-audio-frames")))

	blocks, audioOffset, err := parseBlocks(out[4:])
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-audio-frames"), out[4+audioOffset:])

	var vorbis *block
	for i := range blocks {
		if blocks[i].blockType == blockTypeVorbis {
			vorbis = &blocks[i]
		}
	}
	require.NotNil(t, vorbis)
	assert.True(t, vorbis.isLast)
	assert.Contains(t, string(vorbis.data), "ARTIST=Test Artist")
	assert.Contains(t, string(vorbis.data), "TITLE=Test Title")
	assert.Contains(t, string(vorbis.data), vendorString)
}

func TestWriteReplacesExistingVorbisComment(t *testing.T) {
	path := minimalFlacFile(t)
	require.NoError(t, Write(path, map[string]string{"ARTIST": "First"}))
	require.NoError(t, Write(path, map[string]string{"ARTIST": "Second"}))

	out, err := os.ReadFile(path)
	require.NoError(t, err)

	blocks, _, err := parseBlocks(out[4:])
	require.NoError(t, err)

	var vorbisCount int
	for _, b := range blocks {
		if b.blockType == blockTypeVorbis {
			vorbisCount++
			assert.NotContains(t, string(b.data), "First")
			assert.Contains(t, string(b.data), "Second")
		}
	}
	assert.Equal(t, 1, vorbisCount)
}
