package pcm

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV builds a minimal canonical-format (44.1kHz/stereo/16-bit) PCM
// WAV file so Convert never has to hit the resample path, which depends on
// a real libsoxr/libsox installation unavailable in a unit test sandbox.
func writeWAV(t *testing.T, frames int) string {
	t.Helper()

	const rate, channels, bits = 44100, 2, 16
	dataSize := frames * channels * (bits / 8)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*channels*bits/8))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*bits/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bits))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := 0; i < frames; i++ {
		binary.Write(&buf, binary.LittleEndian, int16(i))
		binary.Write(&buf, binary.LittleEndian, int16(-i))
	}

	path := filepath.Join(t.TempDir(), "fixture.wav")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestConvertDecodesCanonicalWAVWithoutResampling(t *testing.T) {
	path := writeWAV(t, 100)
	c := NewFileConverter()

	pcmData, frames, err := c.Convert(path)

	require.NoError(t, err)
	assert.Equal(t, int64(100), frames)
	assert.Equal(t, 100*4, len(pcmData))
}

func TestConvertReturnsZeroFramesForUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))
	c := NewFileConverter()

	pcmData, frames, err := c.Convert(path)

	require.NoError(t, err)
	assert.Nil(t, pcmData)
	assert.Equal(t, int64(0), frames)
}

func TestConvertReturnsZeroFramesForCorruptWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFxxxxWAVEjunk"), 0o644))
	c := NewFileConverter()

	pcmData, frames, err := c.Convert(path)

	require.NoError(t, err)
	assert.Nil(t, pcmData)
	assert.Equal(t, int64(0), frames)
}
