package metadata

import (
	"fmt"
	"io"
	"os"
)

// Module is an opened metadata block. It is safe for use by one goroutine.
type Module struct {
	// RuntimeVersion is the version string of the metadata root, e.g. "v4.0.30319".
	RuntimeVersion string

	tables  *tableStream
	strings *stringHeap
	blobs   blobHeap
	guids   guidHeap
}

// OpenFile reads the metadata of the PE file at path.
func OpenFile(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Open(f)
}

// Open reads the metadata of a PE image.
func Open(r io.ReaderAt) (*Module, error) {
	block, err := readMetadataBlock(r)
	if err != nil {
		return nil, err
	}
	return Parse(block)
}

// Parse reads a raw metadata block (starting at the "BSJB" root).
func Parse(block []byte) (*Module, error) {
	root, err := parseRoot(block)
	if err != nil {
		return nil, err
	}

	tilde, ok := root.streams["#~"]
	if !ok {
		// Uncompressed tables share the same row layout for the tables we read.
		tilde, ok = root.streams["#-"]
	}
	if !ok {
		return nil, fmt.Errorf("%w: no table stream", ErrMalformed)
	}

	ts, err := parseTableStream(tilde.data)
	if err != nil {
		return nil, err
	}

	return &Module{
		RuntimeVersion: root.version,
		tables:         ts,
		strings:        newStringHeap(root.streams["#Strings"].data),
		blobs:          blobHeap{data: root.streams["#Blob"].data},
		guids:          guidHeap{data: root.streams["#GUID"].data},
	}, nil
}

// Rows returns the row count of a table.
func (m *Module) Rows(t TableID) uint32 {
	if t >= numTables {
		return 0
	}
	return m.tables.tables[t].rows
}

func (m *Module) checkRow(t TableID, row uint32) error {
	if row == 0 || row > m.Rows(t) {
		return fmt.Errorf("%w: %s row %d out of range", ErrMalformed, t, row)
	}
	return nil
}

// rowReader collects the first error while reading the columns of one row.
type rowReader struct {
	m   *Module
	t   TableID
	row uint32
	err error
}

func (m *Module) row(t TableID, row uint32) *rowReader {
	return &rowReader{m: m, t: t, row: row, err: m.checkRow(t, row)}
}

func (r *rowReader) u32(col int) uint32 {
	if r.err != nil {
		return 0
	}
	return r.m.tables.cell(r.t, r.row, col)
}

func (r *rowReader) u16(col int) uint16 {
	return uint16(r.u32(col))
}

func (r *rowReader) text(col int) string {
	if r.err != nil {
		return ""
	}
	s, err := r.m.strings.get(r.u32(col))
	if err != nil {
		r.fail(col, err)
	}
	return s
}

func (r *rowReader) blob(col int) []byte {
	if r.err != nil {
		return nil
	}
	b, err := r.m.blobs.get(r.u32(col))
	if err != nil {
		r.fail(col, err)
	}
	return b
}

func (r *rowReader) guid(col int) [16]byte {
	if r.err != nil {
		return [16]byte{}
	}
	g, err := r.m.guids.get(r.u32(col))
	if err != nil {
		r.fail(col, err)
	}
	return g
}

func (r *rowReader) coded(col int, c *codedIndex) Token {
	if r.err != nil {
		return Token{}
	}
	t, err := r.m.tables.decodeCoded(c, r.u32(col))
	if err != nil {
		r.fail(col, err)
	}
	return t
}

func (r *rowReader) index(col int, t TableID) uint32 {
	v := r.u32(col)
	if r.err == nil && v > r.m.Rows(t)+1 {
		// List columns may point one past the end of the target table.
		r.fail(col, fmt.Errorf("%w: %s index %d out of range", ErrMalformed, t, v))
	}
	return v
}

func (r *rowReader) fail(col int, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s[%d] column %d: %w", r.t, r.row, col, err)
	}
}

// AssemblyVersion is the four-part version stored in Assembly and AssemblyRef rows.
type AssemblyVersion struct {
	Major, Minor, Build, Revision uint16
}

// String returns the dotted form, e.g. "4.0.0.0".
func (v AssemblyVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// AssemblyFlagPublicKey marks a PublicKeyOrToken column holding a full key.
const AssemblyFlagPublicKey = 0x0001

// ModuleRow is the single row of the Module table.
type ModuleRow struct {
	Name string
	MVID [16]byte
}

// TypeRefRow is a reference to a type defined in another scope.
type TypeRefRow struct {
	Scope     Token
	Name      string
	Namespace string
}

// TypeDefRow is a type defined in this module.
type TypeDefRow struct {
	Flags     uint32
	Name      string
	Namespace string
	Extends   Token
}

// MemberRefRow is a reference to a method or field of another type.
type MemberRefRow struct {
	Parent    Token
	Name      string
	Signature []byte
}

// CustomAttributeRow attaches an attribute constructor call to a parent.
type CustomAttributeRow struct {
	Parent      Token
	Constructor Token
	Value       []byte
}

// AssemblyRow is the manifest of the assembly itself.
type AssemblyRow struct {
	HashAlgorithm uint32
	Version       AssemblyVersion
	Flags         uint32
	PublicKey     []byte
	Name          string
	Culture       string
}

// AssemblyRefRow is a referenced assembly.
type AssemblyRefRow struct {
	Version          AssemblyVersion
	Flags            uint32
	PublicKeyOrToken []byte
	Name             string
	Culture          string
}

// NestedClassRow links a nested TypeDef to its enclosing TypeDef.
type NestedClassRow struct {
	Nested    uint32
	Enclosing uint32
}

// Module reads a Module row.
func (m *Module) Module(row uint32) (ModuleRow, error) {
	r := m.row(TableModule, row)
	out := ModuleRow{Name: r.text(1), MVID: r.guid(2)}
	return out, r.err
}

// TypeRef reads a TypeRef row.
func (m *Module) TypeRef(row uint32) (TypeRefRow, error) {
	r := m.row(TableTypeRef, row)
	out := TypeRefRow{
		Scope:     r.coded(0, ciResolutionScope),
		Name:      r.text(1),
		Namespace: r.text(2),
	}
	return out, r.err
}

// TypeDef reads a TypeDef row. The field and method list columns are
// validated but not returned.
func (m *Module) TypeDef(row uint32) (TypeDefRow, error) {
	r := m.row(TableTypeDef, row)
	out := TypeDefRow{
		Flags:     r.u32(0),
		Name:      r.text(1),
		Namespace: r.text(2),
		Extends:   r.coded(3, ciTypeDefOrRef),
	}
	r.index(4, TableField)
	r.index(5, TableMethodDef)
	return out, r.err
}

// MemberRef reads a MemberRef row.
func (m *Module) MemberRef(row uint32) (MemberRefRow, error) {
	r := m.row(TableMemberRef, row)
	out := MemberRefRow{
		Parent:    r.coded(0, ciMemberRefParent),
		Name:      r.text(1),
		Signature: r.blob(2),
	}
	return out, r.err
}

// TypeSpec returns the signature blob of a TypeSpec row.
func (m *Module) TypeSpec(row uint32) ([]byte, error) {
	r := m.row(TableTypeSpec, row)
	sig := r.blob(0)
	return sig, r.err
}

// CustomAttribute reads a CustomAttribute row.
func (m *Module) CustomAttribute(row uint32) (CustomAttributeRow, error) {
	r := m.row(TableCustomAttribute, row)
	out := CustomAttributeRow{
		Parent:      r.coded(0, ciHasCustomAttribute),
		Constructor: r.coded(1, ciCustomAttrType),
		Value:       r.blob(2),
	}
	return out, r.err
}

// Assembly reads the Assembly row, or returns ErrNoAssembly for a module
// without a manifest.
func (m *Module) Assembly() (AssemblyRow, error) {
	if m.Rows(TableAssembly) == 0 {
		return AssemblyRow{}, ErrNoAssembly
	}
	r := m.row(TableAssembly, 1)
	out := AssemblyRow{
		HashAlgorithm: r.u32(0),
		Version:       AssemblyVersion{r.u16(1), r.u16(2), r.u16(3), r.u16(4)},
		Flags:         r.u32(5),
		PublicKey:     r.blob(6),
		Name:          r.text(7),
		Culture:       r.text(8),
	}
	return out, r.err
}

// AssemblyRef reads an AssemblyRef row.
func (m *Module) AssemblyRef(row uint32) (AssemblyRefRow, error) {
	r := m.row(TableAssemblyRef, row)
	out := AssemblyRefRow{
		Version:          AssemblyVersion{r.u16(0), r.u16(1), r.u16(2), r.u16(3)},
		Flags:            r.u32(4),
		PublicKeyOrToken: r.blob(5),
		Name:             r.text(6),
		Culture:          r.text(7),
	}
	return out, r.err
}

// NestedClass reads a NestedClass row.
func (m *Module) NestedClass(row uint32) (NestedClassRow, error) {
	r := m.row(TableNestedClass, row)
	out := NestedClassRow{
		Nested:    r.index(0, TableTypeDef),
		Enclosing: r.index(1, TableTypeDef),
	}
	return out, r.err
}
