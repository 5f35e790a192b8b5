package decoders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pisarenko-net/cdpsa/pkg/decoders/flac"
	"github.com/pisarenko-net/cdpsa/pkg/decoders/wav"
	"github.com/pisarenko-net/cdpsa/pkg/types"
)

// NewDecoder creates and opens the appropriate decoder based on file extension.
// Supports .flac, .fla, and .wav formats — the only formats this appliance's
// library (ripped FLAC) and test fixtures (WAV) ever produce.
// Returns an opened decoder ready for use, or an error if the format is unsupported
// or the file cannot be opened.
func NewDecoder(fileName string) (types.AudioDecoder, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	var decoder types.AudioDecoder

	switch ext {
	case ".flac", ".fla":
		decoder = flac.NewDecoder()
	case ".wav":
		decoder = wav.NewDecoder()
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .flac, .fla, .wav)", ext)
	}

	if err := decoder.Open(fileName); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fileName, err)
	}

	return decoder, nil
}
