// Package pcm is the out-of-scope "external converter" collaborator
// spec.md §4.1 describes: it turns a ripped lossless file into
// interleaved signed-16 little-endian PCM at domain.SampleRate /
// domain.Channels, which is all the Audio Sink ever appends to its
// buffer. Grounded on the teacher's cmd/transform.go, which performs
// exactly this decode-then-resample pipeline for its own CLI.
package pcm

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/pisarenko-net/cdpsa/internal/domain"
	"github.com/pisarenko-net/cdpsa/pkg/decoders"
	"github.com/pisarenko-net/cdpsa/pkg/types"

	soxr "github.com/zaf/resample"
)

// Converter decodes a file on disk into canonical PCM and reports how
// many frames (stereo sample pairs) it produced. A Converter that
// cannot decode the file returns a zero-length result rather than an
// error where spec.md's failure semantics call for a zero-frame track
// rather than a propagated failure (§4.1 "Failure semantics").
type Converter interface {
	Convert(path string) (pcmData []byte, frames int64, err error)
}

// FileConverter decodes FLAC/WAV files with the decoder factory and
// resamples to the domain's canonical rate/channel count when the
// source format differs, using the teacher's SoXR-backed resampler.
type FileConverter struct{}

// NewFileConverter returns the default Converter implementation.
func NewFileConverter() *FileConverter {
	return &FileConverter{}
}

func (c *FileConverter) Convert(path string) ([]byte, int64, error) {
	decoder, err := decoders.NewDecoder(path)
	if err != nil {
		// Decoder failure is not escalated: an empty track is the
		// documented failure mode for Audio Sink's buffer_track.
		return nil, 0, nil
	}
	defer decoder.Close()

	rate, channels, bitsPerSample := decoder.GetFormat()
	raw, err := decodeAll(decoder, channels, bitsPerSample)
	if err != nil {
		return nil, 0, nil
	}

	pcmData := raw
	if bitsPerSample != domain.SampleWidth*8 {
		// The FLAC decoder is fixed at 16-bit output, but the WAV
		// decoder passes the source depth through, so a non-16-bit WAV
		// ends here with an error rather than a zero-frame result.
		return nil, 0, fmt.Errorf("pcm: unsupported bit depth %d", bitsPerSample)
	}

	if rate != domain.SampleRate || channels != domain.Channels {
		resampled, err := resample(pcmData, rate, domain.SampleRate, channels)
		if err != nil {
			return nil, 0, nil
		}
		pcmData = resampled
		if channels != domain.Channels {
			pcmData = toStereo(pcmData, channels)
		}
	}

	frames := int64(len(pcmData) / domain.BytesPerFrame)
	return pcmData, frames, nil
}

func decodeAll(decoder types.AudioDecoder, channels, bitsPerSample int) ([]byte, error) {
	const bufferSamples = 4096
	bytesPerSample := bitsPerSample / 8
	bufferSize := bufferSamples * channels * bytesPerSample

	buffer := make([]byte, bufferSize)
	out := make([]byte, 0, bufferSize*16)

	for {
		n, err := decoder.DecodeSamples(bufferSamples, buffer)
		if n > 0 {
			out = append(out, buffer[:n*channels*bytesPerSample]...)
		}
		if err != nil {
			return out, nil
		}
		if n == 0 {
			return out, nil
		}
	}
}

func resample(pcmData []byte, fromRate, toRate, channels int) ([]byte, error) {
	if fromRate == toRate {
		return pcmData, nil
	}

	var out bytes.Buffer
	w := bufio.NewWriter(&out)

	r, err := soxr.New(w, float64(fromRate), float64(toRate), channels, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("pcm: new resampler: %w", err)
	}
	if _, err := r.Write(pcmData); err != nil {
		r.Close()
		return nil, fmt.Errorf("pcm: resample: %w", err)
	}
	if err := r.Close(); err != nil {
		return nil, fmt.Errorf("pcm: close resampler: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("pcm: flush resampler output: %w", err)
	}
	return out.Bytes(), nil
}

// toStereo duplicates a mono channel or drops extra channels so the
// sink always receives domain.Channels-wide interleaved frames.
func toStereo(pcmData []byte, channels int) []byte {
	if channels == domain.Channels {
		return pcmData
	}
	bytesPerSample := domain.SampleWidth
	frameCount := len(pcmData) / (channels * bytesPerSample)
	out := make([]byte, frameCount*domain.BytesPerFrame)
	for i := 0; i < frameCount; i++ {
		src := pcmData[i*channels*bytesPerSample : i*channels*bytesPerSample+bytesPerSample]
		right := src
		if channels > 1 {
			right = pcmData[i*channels*bytesPerSample+bytesPerSample : i*channels*bytesPerSample+2*bytesPerSample]
		}
		dst := out[i*domain.BytesPerFrame:]
		copy(dst[0:bytesPerSample], src)
		copy(dst[bytesPerSample:domain.BytesPerFrame], right)
	}
	return out
}
