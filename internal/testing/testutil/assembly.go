package testutil

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

var le = binary.LittleEndian

// AssemblyRef, TypeRef, MemberRef and TypeSpec are 1-based row numbers.
type (
	AssemblyRef uint32
	TypeRef     uint32
	MemberRef   uint32
	TypeSpec    uint32
)

type asmRefRow struct {
	name    string
	version [4]uint16
	token   []byte
	culture string
}

type typeRefRow struct {
	scope     uint32 // ResolutionScope coded index
	name      string
	namespace string
}

type memberRefRow struct {
	parent uint32 // MemberRefParent coded index
	name   string
	sig    []byte
}

type attrRow struct {
	ctor  MemberRef
	value []byte
}

// AssemblyBuilder writes a minimal managed PE image holding an Assembly row
// and the reference tables the extractor reads.
type AssemblyBuilder struct {
	name      string
	version   [4]uint16
	publicKey []byte
	culture   string

	asmRefs    []asmRefRow
	typeRefs   []typeRefRow
	memberRefs []memberRefRow
	typeSpecs  [][]byte
	attrs      []attrRow
}

// NewAssembly starts an assembly named name with version 1.0.0.0.
func NewAssembly(name string) *AssemblyBuilder {
	return &AssemblyBuilder{name: name, version: [4]uint16{1, 0, 0, 0}}
}

func (b *AssemblyBuilder) Version(major, minor, build, revision uint16) *AssemblyBuilder {
	b.version = [4]uint16{major, minor, build, revision}
	return b
}

func (b *AssemblyBuilder) PublicKey(key []byte) *AssemblyBuilder {
	b.publicKey = key
	return b
}

func (b *AssemblyBuilder) Culture(culture string) *AssemblyBuilder {
	b.culture = culture
	return b
}

// AssemblyRef adds a reference to another assembly. token is the 8-byte
// public key token or nil.
func (b *AssemblyBuilder) AssemblyRef(name string, version [4]uint16, token []byte) AssemblyRef {
	b.asmRefs = append(b.asmRefs, asmRefRow{name: name, version: version, token: token})
	return AssemblyRef(len(b.asmRefs))
}

// TypeRef adds a type reference scoped to an assembly reference.
func (b *AssemblyBuilder) TypeRef(scope AssemblyRef, namespace, name string) TypeRef {
	b.typeRefs = append(b.typeRefs, typeRefRow{scope: uint32(scope)<<2 | 2, name: name, namespace: namespace})
	return TypeRef(len(b.typeRefs))
}

// NestedTypeRef adds a type reference nested in outer.
func (b *AssemblyBuilder) NestedTypeRef(outer TypeRef, name string) TypeRef {
	b.typeRefs = append(b.typeRefs, typeRefRow{scope: uint32(outer)<<2 | 3, name: name})
	return TypeRef(len(b.typeRefs))
}

// LocalTypeRef adds a type reference scoped to the module itself.
func (b *AssemblyBuilder) LocalTypeRef(namespace, name string) TypeRef {
	b.typeRefs = append(b.typeRefs, typeRefRow{scope: 1 << 2, name: name, namespace: namespace})
	return TypeRef(len(b.typeRefs))
}

// MemberRef adds a member reference on a type reference.
func (b *AssemblyBuilder) MemberRef(parent TypeRef, name string, sig []byte) MemberRef {
	b.memberRefs = append(b.memberRefs, memberRefRow{parent: uint32(parent)<<3 | 1, name: name, sig: sig})
	return MemberRef(len(b.memberRefs))
}

// SpecMemberRef adds a member reference on a type specification.
func (b *AssemblyBuilder) SpecMemberRef(parent TypeSpec, name string, sig []byte) MemberRef {
	b.memberRefs = append(b.memberRefs, memberRefRow{parent: uint32(parent)<<3 | 4, name: name, sig: sig})
	return MemberRef(len(b.memberRefs))
}

// TypeSpec adds a type specification blob.
func (b *AssemblyBuilder) TypeSpec(sig []byte) TypeSpec {
	b.typeSpecs = append(b.typeSpecs, sig)
	return TypeSpec(len(b.typeSpecs))
}

// StringAttribute attaches an assembly-level custom attribute whose
// constructor takes one string.
func (b *AssemblyBuilder) StringAttribute(scope AssemblyRef, namespace, name, value string) *AssemblyBuilder {
	attr := b.TypeRef(scope, namespace, name)
	ctor := b.MemberRef(attr, ".ctor", MethodSig(true, Void, String))

	v := []byte{0x01, 0x00}
	v = append(v, compress(uint32(len(value)))...)
	v = append(v, value...)
	v = append(v, 0x00, 0x00)
	b.attrs = append(b.attrs, attrRow{ctor: ctor, value: v})
	return b
}

// TargetFramework attaches a TargetFrameworkAttribute.
func (b *AssemblyBuilder) TargetFramework(scope AssemblyRef, moniker string) *AssemblyBuilder {
	return b.StringAttribute(scope, "System.Runtime.Versioning", "TargetFrameworkAttribute", moniker)
}

// Signature element encodings.
var (
	Void   = []byte{0x01}
	Bool   = []byte{0x02}
	Int32  = []byte{0x08}
	String = []byte{0x0E}
	Object = []byte{0x1C}
)

// Class encodes a class type from a type reference.
func Class(t TypeRef) []byte {
	return append([]byte{0x12}, compress(uint32(t)<<2|1)...)
}

// ValueType encodes a value type from a type reference.
func ValueType(t TypeRef) []byte {
	return append([]byte{0x11}, compress(uint32(t)<<2|1)...)
}

// SZArray encodes a single-dimension zero-based array.
func SZArray(elem []byte) []byte {
	return append([]byte{0x1D}, elem...)
}

// ByRef encodes a managed pointer.
func ByRef(elem []byte) []byte {
	return append([]byte{0x10}, elem...)
}

// Var encodes a type generic parameter.
func Var(n uint32) []byte {
	return append([]byte{0x13}, compress(n)...)
}

// MVar encodes a method generic parameter.
func MVar(n uint32) []byte {
	return append([]byte{0x1E}, compress(n)...)
}

// GenericInst encodes a closed generic class type.
func GenericInst(generic TypeRef, args ...[]byte) []byte {
	out := []byte{0x15, 0x12}
	out = append(out, compress(uint32(generic)<<2|1)...)
	out = append(out, compress(uint32(len(args)))...)
	for _, a := range args {
		out = append(out, a...)
	}
	return out
}

// MethodSig encodes a method reference signature.
func MethodSig(hasThis bool, ret []byte, params ...[]byte) []byte {
	conv := byte(0x00)
	if hasThis {
		conv = 0x20
	}
	out := []byte{conv}
	out = append(out, compress(uint32(len(params)))...)
	out = append(out, ret...)
	for _, p := range params {
		out = append(out, p...)
	}
	return out
}

// GenericMethodSig encodes a generic method reference signature.
func GenericMethodSig(arity uint32, ret []byte, params ...[]byte) []byte {
	out := []byte{0x30}
	out = append(out, compress(arity)...)
	out = append(out, compress(uint32(len(params)))...)
	out = append(out, ret...)
	for _, p := range params {
		out = append(out, p...)
	}
	return out
}

// FieldSig encodes a field signature.
func FieldSig(t []byte) []byte {
	return append([]byte{0x06}, t...)
}

func compress(v uint32) []byte {
	switch {
	case v < 0x80:
		return []byte{byte(v)}
	case v < 0x4000:
		return []byte{byte(v>>8) | 0x80, byte(v)}
	default:
		return []byte{byte(v>>24) | 0xC0, byte(v >> 16), byte(v >> 8), byte(v)}
	}
}

type heap struct {
	buf   bytes.Buffer
	index map[string]uint32
}

func newHeap() *heap {
	h := &heap{index: make(map[string]uint32)}
	h.buf.WriteByte(0)
	return h
}

func (h *heap) str(s string) uint16 {
	if s == "" {
		return 0
	}
	if off, ok := h.index[s]; ok {
		return uint16(off)
	}
	off := uint32(h.buf.Len())
	h.buf.WriteString(s)
	h.buf.WriteByte(0)
	h.index[s] = off
	return uint16(off)
}

func (h *heap) blob(b []byte) uint16 {
	if len(b) == 0 {
		return 0
	}
	off := uint32(h.buf.Len())
	h.buf.Write(compress(uint32(len(b))))
	h.buf.Write(b)
	return uint16(off)
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// Metadata returns the raw metadata block.
func (b *AssemblyBuilder) Metadata() []byte {
	strs, blobs := newHeap(), newHeap()
	var rows bytes.Buffer
	w16 := func(v uint16) { _ = binary.Write(&rows, le, v) }
	w32 := func(v uint32) { _ = binary.Write(&rows, le, v) }

	counts := map[int]int{
		0x00: 1,
		0x01: len(b.typeRefs),
		0x0A: len(b.memberRefs),
		0x0C: len(b.attrs),
		0x1B: len(b.typeSpecs),
		0x20: 1,
		0x23: len(b.asmRefs),
	}

	// Module
	w16(0)
	w16(strs.str(b.name + ".dll"))
	w16(1)
	w16(0)
	w16(0)

	for _, r := range b.typeRefs {
		w16(uint16(r.scope))
		w16(strs.str(r.name))
		w16(strs.str(r.namespace))
	}
	for _, r := range b.memberRefs {
		w16(uint16(r.parent))
		w16(strs.str(r.name))
		w16(blobs.blob(r.sig))
	}
	for _, a := range b.attrs {
		w16(1<<5 | 14) // HasCustomAttribute: Assembly row 1
		w16(uint16(a.ctor)<<3 | 3)
		w16(blobs.blob(a.value))
	}
	for _, s := range b.typeSpecs {
		w16(blobs.blob(s))
	}

	// Assembly
	var flags uint32
	if len(b.publicKey) > 0 {
		flags = 0x0001
	}
	w32(0x8004)
	for _, v := range b.version {
		w16(v)
	}
	w32(flags)
	w16(blobs.blob(b.publicKey))
	w16(strs.str(b.name))
	w16(strs.str(b.culture))

	for _, r := range b.asmRefs {
		for _, v := range r.version {
			w16(v)
		}
		w32(0)
		w16(blobs.blob(r.token))
		w16(strs.str(r.name))
		w16(strs.str(r.culture))
		w16(0)
	}

	var tables bytes.Buffer
	_ = binary.Write(&tables, le, uint32(0))
	tables.Write([]byte{2, 0, 0, 1})
	var valid uint64
	for id, n := range counts {
		if n > 0 {
			valid |= 1 << uint(id)
		}
	}
	_ = binary.Write(&tables, le, valid)
	_ = binary.Write(&tables, le, uint64(0))
	for id := 0; id < 64; id++ {
		if valid&(1<<uint(id)) != 0 {
			_ = binary.Write(&tables, le, uint32(counts[id]))
		}
	}
	tables.Write(rows.Bytes())

	streams := []struct {
		name string
		data []byte
	}{
		{"#~", pad4(tables.Bytes())},
		{"#Strings", pad4(strs.buf.Bytes())},
		{"#US", pad4([]byte{0})},
		{"#GUID", bytes.Repeat([]byte{0xAB}, 16)},
		{"#Blob", pad4(blobs.buf.Bytes())},
	}

	version := pad4(append([]byte("v4.0.30319"), 0))
	headerSize := 16 + len(version) + 4
	for _, s := range streams {
		headerSize += 8 + len(pad4(append([]byte(s.name), 0)))
	}

	var out bytes.Buffer
	_ = binary.Write(&out, le, uint32(0x424A5342))
	_ = binary.Write(&out, le, uint16(1))
	_ = binary.Write(&out, le, uint16(1))
	_ = binary.Write(&out, le, uint32(0))
	_ = binary.Write(&out, le, uint32(len(version)))
	out.Write(version)
	_ = binary.Write(&out, le, uint16(0))
	_ = binary.Write(&out, le, uint16(len(streams)))

	offset := headerSize
	for _, s := range streams {
		_ = binary.Write(&out, le, uint32(offset))
		_ = binary.Write(&out, le, uint32(len(s.data)))
		out.Write(pad4(append([]byte(s.name), 0)))
		offset += len(s.data)
	}
	for _, s := range streams {
		out.Write(s.data)
	}
	return out.Bytes()
}

const (
	fileAlignment    = 0x200
	sectionAlignment = 0x2000
	textRVA          = 0x2000
	cliHeaderSize    = 72
)

// Bytes returns the complete PE image.
func (b *AssemblyBuilder) Bytes() []byte {
	meta := b.Metadata()

	var text bytes.Buffer
	_ = binary.Write(&text, le, uint32(cliHeaderSize))
	_ = binary.Write(&text, le, uint16(2))
	_ = binary.Write(&text, le, uint16(5))
	_ = binary.Write(&text, le, uint32(textRVA+cliHeaderSize))
	_ = binary.Write(&text, le, uint32(len(meta)))
	_ = binary.Write(&text, le, uint32(1)) // ILONLY
	text.Write(make([]byte, cliHeaderSize-text.Len()))
	text.Write(meta)

	return writePE(text.Bytes(), true)
}

// NativeImage returns a PE image without a CLI header.
func NativeImage() []byte {
	return writePE(make([]byte, 16), false)
}

func writePE(text []byte, managed bool) []byte {
	raw := len(text)
	if raw%fileAlignment != 0 {
		raw += fileAlignment - raw%fileAlignment
	}

	var out bytes.Buffer
	dos := make([]byte, 0x80)
	copy(dos, "MZ")
	le.PutUint32(dos[0x3C:], 0x80)
	out.Write(dos)
	out.WriteString("PE\x00\x00")

	_ = binary.Write(&out, le, pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(pe.OptionalHeader32{})),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE | pe.IMAGE_FILE_DLL,
	})

	oh := pe.OptionalHeader32{
		Magic:                 0x10b,
		SizeOfCode:            uint32(raw),
		BaseOfCode:            textRVA,
		ImageBase:             0x400000,
		SectionAlignment:      sectionAlignment,
		FileAlignment:         fileAlignment,
		MajorSubsystemVersion: 4,
		SizeOfImage:           textRVA + sectionAlignment,
		SizeOfHeaders:         fileAlignment,
		Subsystem:             pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		NumberOfRvaAndSizes:   16,
	}
	if managed {
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR] = pe.DataDirectory{VirtualAddress: textRVA, Size: cliHeaderSize}
	}
	_ = binary.Write(&out, le, oh)

	sh := pe.SectionHeader32{
		VirtualSize:      uint32(len(text)),
		VirtualAddress:   textRVA,
		SizeOfRawData:    uint32(raw),
		PointerToRawData: fileAlignment,
		Characteristics:  pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ,
	}
	copy(sh.Name[:], ".text")
	_ = binary.Write(&out, le, sh)

	out.Write(make([]byte, fileAlignment-out.Len()))
	out.Write(text)
	out.Write(make([]byte, raw-len(text)))
	return out.Bytes()
}

// WriteAssembly writes the image to dir/name and returns its path.
func WriteAssembly(t *testing.T, dir, name string, b *AssemblyBuilder) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
