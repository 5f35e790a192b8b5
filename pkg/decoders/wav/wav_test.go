package wav

import (
	"testing"
)

func TestNewDecoder(t *testing.T) {
	decoder := NewDecoder()
	if decoder == nil {
		t.Fatal("NewDecoder returned nil")
	}
}

func TestDecoderGetFormatBeforeOpen(t *testing.T) {
	decoder := NewDecoder()

	rate, channels, bps := decoder.GetFormat()
	if rate != 0 || channels != 0 || bps != 0 {
		t.Errorf("expected zero values before Open, got rate=%d channels=%d bps=%d", rate, channels, bps)
	}
}

func TestDecoderCloseWithoutOpen(t *testing.T) {
	decoder := NewDecoder()

	if err := decoder.Close(); err != nil {
		t.Errorf("Close on unopened decoder failed: %v", err)
	}
}

func TestDecodeSamplesWithoutOpen(t *testing.T) {
	decoder := NewDecoder()

	buffer := make([]byte, 1024)
	if _, err := decoder.DecodeSamples(len(buffer)/4, buffer); err == nil {
		t.Error("expected error decoding without opening a file")
	}
}

func TestOpenMissingFile(t *testing.T) {
	decoder := NewDecoder()

	if err := decoder.Open("does-not-exist.wav"); err == nil {
		t.Error("expected error opening a missing file")
	}
}
