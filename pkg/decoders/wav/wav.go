// Package wav decodes the WAV fixtures this appliance's own tests and
// tooling use to exercise internal/pcm without a real ripped FLAC file on
// disk. The product's own library is FLAC-only (internal/discio only ever
// encodes FLAC, internal/library only indexes "*.flac"), so this decoder
// never runs on the playback path — it exists purely as a second, known
// format for pkg/decoders.NewDecoder to select between in tests.
package wav

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"
)

// Decoder wraps go-wav for decoding WAV audio files. Implements
// types.AudioDecoder.
type Decoder struct {
	file     *os.File
	reader   *wav.Reader
	rate     int
	channels int
	bps      int
}

// NewDecoder creates an unopened Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("decoders/wav: open %s: %w", fileName, err)
	}

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		return fmt.Errorf("decoders/wav: read format: %w", err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		file.Close()
		return fmt.Errorf("decoders/wav: format %d not supported, only PCM", format.AudioFormat)
	}

	d.file = file
	d.reader = reader
	d.rate = int(format.SampleRate)
	d.channels = int(format.NumChannels)
	d.bps = int(format.BitsPerSample)
	return nil
}

func (d *Decoder) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, d.bps
}

// DecodeSamples pulls up to `samples` frames in one batched ReadSamples
// call rather than one at a time, since this decoder only ever has to
// satisfy internal/pcm's 4096-sample read chunks, not a real-time device
// callback.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("decoders/wav: decoder not initialized")
	}

	bytesPerSample := d.bps / 8
	frameBytes := d.channels * bytesPerSample

	batch, readErr := d.reader.ReadSamples(uint32(samples))
	if len(batch) == 0 {
		return 0, readErr
	}
	if len(batch) > samples {
		batch = batch[:samples]
	}

	for i, s := range batch {
		offset := i * frameBytes
		if offset+frameBytes > len(audio) {
			return i, nil
		}
		for ch := 0; ch < d.channels && ch < len(s.Values); ch++ {
			if err := putSample(audio[offset+ch*bytesPerSample:], s.Values[ch], d.bps); err != nil {
				return i, err
			}
		}
	}

	return len(batch), nil
}

func putSample(dst []byte, value int, bps int) error {
	switch bps {
	case 8:
		dst[0] = byte(value)
	case 16:
		dst[0] = byte(value)
		dst[1] = byte(value >> 8)
	case 24:
		dst[0] = byte(value)
		dst[1] = byte(value >> 8)
		dst[2] = byte(value >> 16)
	case 32:
		dst[0] = byte(value)
		dst[1] = byte(value >> 8)
		dst[2] = byte(value >> 16)
		dst[3] = byte(value >> 24)
	default:
		return fmt.Errorf("decoders/wav: unsupported bits per sample: %d", bps)
	}
	return nil
}
