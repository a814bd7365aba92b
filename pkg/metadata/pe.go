package metadata

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"io"
)

// cliHeaderDirectory is the index of the CLI (COR20) header data directory.
const cliHeaderDirectory = 14

const cliHeaderSize = 72

var le = binary.LittleEndian

// readMetadataBlock locates the CLI header of a PE image and returns the raw
// metadata block it points at.
func readMetadataBlock(r io.ReaderAt) ([]byte, error) {
	magic := make([]byte, 2)
	if _, err := r.ReadAt(magic, 0); err != nil || !bytes.Equal(magic, []byte("MZ")) {
		return nil, fmt.Errorf("%w: missing MZ signature", ErrNotManagedAssembly)
	}

	f, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer f.Close()

	var dir pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes > cliHeaderDirectory {
			dir = oh.DataDirectory[cliHeaderDirectory]
		}
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes > cliHeaderDirectory {
			dir = oh.DataDirectory[cliHeaderDirectory]
		}
	}
	if dir.VirtualAddress == 0 || dir.Size < cliHeaderSize {
		return nil, fmt.Errorf("%w: no CLI header", ErrNotManagedAssembly)
	}

	cli, err := readRVA(f, dir.VirtualAddress, cliHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("reading CLI header: %w", err)
	}

	metaRVA := le.Uint32(cli[8:])
	metaSize := le.Uint32(cli[12:])
	if metaRVA == 0 || metaSize == 0 {
		return nil, fmt.Errorf("%w: CLI header has no metadata directory", ErrNotManagedAssembly)
	}

	block, err := readRVA(f, metaRVA, metaSize)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	return block, nil
}

// readRVA reads size bytes at a relative virtual address.
func readRVA(f *pe.File, rva, size uint32) ([]byte, error) {
	for _, s := range f.Sections {
		extent := s.VirtualSize
		if s.Size > extent {
			extent = s.Size
		}
		if rva < s.VirtualAddress || rva-s.VirtualAddress >= extent {
			continue
		}

		off := rva - s.VirtualAddress
		if uint64(off)+uint64(size) > uint64(s.Size) {
			return nil, fmt.Errorf("%w: rva 0x%x+%d exceeds section %s", ErrTruncated, rva, size, s.Name)
		}

		buf := make([]byte, size)
		if _, err := s.ReadAt(buf, int64(off)); err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrTruncated, s.Name, err)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w: rva 0x%x is not inside any section", ErrMalformed, rva)
}
