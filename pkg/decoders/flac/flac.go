// Package flac decodes the ripped FLAC library this appliance's Audio
// Sink plays back through internal/pcm — the only format
// internal/discio ever writes and internal/library ever indexes.
package flac

import (
	"fmt"

	goflac "github.com/drgolem/go-flac/flac"
)

// Decoder wraps the go-flac decoder. Implements types.AudioDecoder.
type Decoder struct {
	decoder  *goflac.FlacDecoder
	rate     int
	channels int
	bps      int
}

// NewDecoder creates an unopened Decoder. Output is fixed at 16-bit,
// matching domain.SampleWidth.
func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, d.bps
}

func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("decoders/flac: decoder not initialized")
	}
	return d.decoder.DecodeSamples(samples, audio)
}

func (d *Decoder) Open(fileName string) error {
	decoder, err := goflac.NewFlacFrameDecoder(16)
	if err != nil {
		return fmt.Errorf("decoders/flac: create decoder: %w", err)
	}

	if err := decoder.Open(fileName); err != nil {
		decoder.Delete()
		return fmt.Errorf("decoders/flac: open %s: %w", fileName, err)
	}

	rate, channels, bps := decoder.GetFormat()
	d.decoder = decoder
	d.rate = rate
	d.channels = channels
	d.bps = bps
	return nil
}

func (d *Decoder) Close() error {
	if d.decoder == nil {
		return nil
	}
	d.decoder.Close()
	d.decoder.Delete()
	d.decoder = nil
	return nil
}
