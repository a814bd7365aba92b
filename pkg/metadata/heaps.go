package metadata

import (
	"bytes"
	"fmt"
)

const metadataSignature = 0x424A5342 // "BSJB"

type stream struct {
	name string
	data []byte
}

type root struct {
	version string
	streams map[string]stream
}

// parseRoot reads the metadata root header and its stream table.
func parseRoot(block []byte) (*root, error) {
	if len(block) < 16 {
		return nil, fmt.Errorf("%w: metadata root", ErrTruncated)
	}
	if le.Uint32(block) != metadataSignature {
		return nil, fmt.Errorf("%w: bad metadata signature 0x%08x", ErrMalformed, le.Uint32(block))
	}

	verLen := int(le.Uint32(block[12:]))
	pos := 16 + verLen
	if verLen < 0 || pos+4 > len(block) {
		return nil, fmt.Errorf("%w: metadata version string", ErrTruncated)
	}
	version := string(bytes.TrimRight(block[16:pos], "\x00"))

	count := int(le.Uint16(block[pos+2:]))
	pos += 4

	r := &root{version: version, streams: make(map[string]stream, count)}
	for i := 0; i < count; i++ {
		if pos+8 > len(block) {
			return nil, fmt.Errorf("%w: stream header %d", ErrTruncated, i)
		}
		off := le.Uint32(block[pos:])
		size := le.Uint32(block[pos+4:])
		pos += 8

		end := bytes.IndexByte(block[pos:], 0)
		if end < 0 || end > 32 {
			return nil, fmt.Errorf("%w: stream name %d", ErrMalformed, i)
		}
		name := string(block[pos : pos+end])
		pos += (end + 4) &^ 3

		if uint64(off)+uint64(size) > uint64(len(block)) {
			return nil, fmt.Errorf("%w: stream %s", ErrTruncated, name)
		}
		r.streams[name] = stream{name: name, data: block[off : off+size]}
	}
	return r, nil
}

// stringHeap is the "#Strings" heap of null-terminated UTF-8 identifiers.
type stringHeap struct {
	data  []byte
	cache map[uint32]string
}

func newStringHeap(data []byte) *stringHeap {
	return &stringHeap{data: data, cache: make(map[uint32]string)}
}

func (h *stringHeap) get(off uint32) (string, error) {
	if off == 0 {
		return "", nil
	}
	if s, ok := h.cache[off]; ok {
		return s, nil
	}
	if int(off) >= len(h.data) {
		return "", fmt.Errorf("%w: string offset 0x%x", ErrTruncated, off)
	}
	end := bytes.IndexByte(h.data[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string at 0x%x", ErrTruncated, off)
	}
	s := string(h.data[off : int(off)+end])
	h.cache[off] = s
	return s, nil
}

// blobHeap is the "#Blob" heap of length-prefixed byte runs.
type blobHeap struct {
	data []byte
}

func (h blobHeap) get(off uint32) ([]byte, error) {
	if off == 0 {
		return nil, nil
	}
	if int(off) >= len(h.data) {
		return nil, fmt.Errorf("%w: blob offset 0x%x", ErrTruncated, off)
	}
	n, size, err := decompressUint(h.data[off:])
	if err != nil {
		return nil, err
	}
	start := int(off) + size
	if uint64(start)+uint64(n) > uint64(len(h.data)) {
		return nil, fmt.Errorf("%w: blob at 0x%x", ErrTruncated, off)
	}
	return h.data[start : start+int(n)], nil
}

// guidHeap is the "#GUID" heap; indices are 1-based.
type guidHeap struct {
	data []byte
}

func (h guidHeap) get(idx uint32) ([16]byte, error) {
	var g [16]byte
	if idx == 0 {
		return g, nil
	}
	off := int(idx-1) * 16
	if off+16 > len(h.data) {
		return g, fmt.Errorf("%w: guid index %d", ErrTruncated, idx)
	}
	copy(g[:], h.data[off:off+16])
	return g, nil
}

// decompressUint decodes an ECMA-335 compressed unsigned integer and returns
// it with the number of bytes consumed.
func decompressUint(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: compressed integer", ErrTruncated)
	}
	switch {
	case b[0]&0x80 == 0:
		return uint32(b[0]), 1, nil
	case b[0]&0xC0 == 0x80:
		if len(b) < 2 {
			return 0, 0, fmt.Errorf("%w: compressed integer", ErrTruncated)
		}
		return uint32(b[0]&0x3F)<<8 | uint32(b[1]), 2, nil
	case b[0]&0xE0 == 0xC0:
		if len(b) < 4 {
			return 0, 0, fmt.Errorf("%w: compressed integer", ErrTruncated)
		}
		return uint32(b[0]&0x1F)<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), 4, nil
	default:
		return 0, 0, fmt.Errorf("%w: compressed integer prefix 0x%02x", ErrMalformed, b[0])
	}
}
