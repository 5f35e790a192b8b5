// Package vorbiscomment rewrites a FLAC file's VORBIS_COMMENT metadata
// block in place. No FLAC metadata writer exists anywhere in this
// module's dependency corpus (dhowden/tag only reads tags, and go-flac is
// used here only to decode and encode audio), so this is a minimal from-scratch implementation of the
// container surgery the original's mutagen-backed write_meta performed
// for free — see DESIGN.md.
package vorbiscomment

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
)

const (
	magic              = "fLaC"
	blockTypeVorbis    = 4
	vendorString       = "cdpsa"
	lastBlockFlag byte = 0x80
)

type block struct {
	blockType byte
	isLast    bool
	data      []byte
}

// Write replaces (or inserts) the VORBIS_COMMENT block of the FLAC file
// at path with one built from fields, leaving every other metadata
// block and all audio frames byte-for-byte unchanged.
func Write(path string, fields map[string]string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vorbiscomment: read %s: %w", path, err)
	}
	if len(raw) < 4 || string(raw[:4]) != magic {
		return fmt.Errorf("vorbiscomment: %s is not a FLAC file", path)
	}

	blocks, audioOffset, err := parseBlocks(raw[4:])
	if err != nil {
		return fmt.Errorf("vorbiscomment: parse %s: %w", path, err)
	}

	kept := blocks[:0]
	for _, b := range blocks {
		if b.blockType != blockTypeVorbis {
			kept = append(kept, b)
		}
	}
	kept = append(kept, block{blockType: blockTypeVorbis, data: encodeVorbisComment(fields)})

	for i := range kept {
		kept[i].isLast = i == len(kept)-1
	}

	var out bytes.Buffer
	out.WriteString(magic)
	for _, b := range kept {
		writeBlock(&out, b)
	}
	out.Write(raw[4+audioOffset:])

	tmp := path + ".tagtmp"
	if err := os.WriteFile(tmp, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("vorbiscomment: write temp file: %w", err)
	}
	return os.Rename(tmp, path)
}

// parseBlocks reads the metadata block chain starting right after the
// "fLaC" marker, returning the blocks and the byte offset (relative to
// the same start) where audio frame data begins.
func parseBlocks(data []byte) ([]block, int, error) {
	var blocks []block
	offset := 0

	for {
		if offset+4 > len(data) {
			return nil, 0, fmt.Errorf("truncated metadata block header")
		}
		header := data[offset]
		isLast := header&lastBlockFlag != 0
		blockType := header &^ lastBlockFlag
		length := int(data[offset+1])<<16 | int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4

		if offset+length > len(data) {
			return nil, 0, fmt.Errorf("metadata block overruns file")
		}
		blocks = append(blocks, block{
			blockType: blockType,
			isLast:    isLast,
			data:      append([]byte(nil), data[offset:offset+length]...),
		})
		offset += length

		if isLast {
			return blocks, offset, nil
		}
	}
}

func writeBlock(out *bytes.Buffer, b block) {
	header := b.blockType
	if b.isLast {
		header |= lastBlockFlag
	}
	length := len(b.data)
	out.WriteByte(header)
	out.WriteByte(byte(length >> 16))
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(b.data)
}

// encodeVorbisComment serialises fields into the VORBIS_COMMENT wire
// format: a length-prefixed vendor string, a 32-bit little-endian
// comment count, then each length-prefixed "KEY=value" comment.
// Iteration order is sorted so output is deterministic.
func encodeVorbisComment(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out bytes.Buffer
	writeLV(&out, []byte(vendorString))

	countPos := out.Len()
	out.Write(make([]byte, 4)) // comment count, patched below

	count := uint32(0)
	for _, k := range keys {
		comment := fmt.Sprintf("%s=%s", k, fields[k])
		writeLV(&out, []byte(comment))
		count++
	}

	buf := out.Bytes()
	binary.LittleEndian.PutUint32(buf[countPos:countPos+4], count)
	return buf
}

func writeLV(out *bytes.Buffer, data []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	out.Write(lenBuf[:])
	out.Write(data)
}
