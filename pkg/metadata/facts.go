package metadata

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/simonhull/apiport/pkg/model"
)

const (
	targetFrameworkAttribute = "System.Runtime.Versioning.TargetFrameworkAttribute"
	fileVersionAttribute     = "System.Reflection.AssemblyFileVersionAttribute"
)

// Reference is a type or member an assembly uses from another assembly.
type Reference struct {
	MemberDocID string
	TypeDocID   string
	// AssemblyRef is the 1-based AssemblyRef row of the declaring assembly.
	AssemblyRef uint32
}

// Facts are the portability facts of one assembly.
type Facts struct {
	Identity        model.AssemblyName
	FileVersion     string
	TargetFramework string
	RuntimeVersion  string
	// AssemblyRefs[i] describes AssemblyRef row i+1. A malformed row is left
	// zero-valued and reported in Diagnostics.
	AssemblyRefs []model.AssemblyName
	// References are unique and ordered by type, member, then assembly row.
	References  []Reference
	Diagnostics Diagnostics
}

// ReferencedAssembly returns the assembly a reference resolves to.
func (f *Facts) ReferencedAssembly(ref Reference) (model.AssemblyName, bool) {
	if ref.AssemblyRef == 0 || int(ref.AssemblyRef) > len(f.AssemblyRefs) {
		return model.AssemblyName{}, false
	}
	name := f.AssemblyRefs[ref.AssemblyRef-1]
	return name, name.Name != ""
}

// ExtractFile opens a PE file and extracts its facts.
func ExtractFile(path string) (*Facts, error) {
	m, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	return m.Facts()
}

// Extract reads a PE image and extracts its facts.
func Extract(r io.ReaderAt) (*Facts, error) {
	m, err := Open(r)
	if err != nil {
		return nil, err
	}
	return m.Facts()
}

// Facts walks the assembly, type and member reference tables. Malformed rows
// are skipped and recorded; only a missing or malformed Assembly row fails.
func (m *Module) Facts() (*Facts, error) {
	asm, err := m.Assembly()
	if err != nil {
		return nil, err
	}

	f := &Facts{
		Identity: model.AssemblyName{
			Name:           asm.Name,
			Version:        asm.Version.String(),
			Culture:        asm.Culture,
			PublicKeyToken: PublicKeyToken(asm.PublicKey),
		},
		RuntimeVersion: m.RuntimeVersion,
	}

	r := newResolver(m, &f.Diagnostics)
	f.AssemblyRefs = r.assemblyRefs()
	f.References = r.references()
	f.TargetFramework, f.FileVersion = r.assemblyAttributes()
	return f, nil
}

// PublicKeyToken returns the hex token of a public key: the last eight bytes
// of its SHA-1 hash in reverse order. An empty key has an empty token.
func PublicKeyToken(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	sum := sha1.Sum(key)
	token := make([]byte, 8)
	for i := range token {
		token[i] = sum[len(sum)-1-i]
	}
	return hex.EncodeToString(token)
}

type resolver struct {
	m         *Module
	diags     *Diagnostics
	refNames  map[uint32]string
	defNames  map[uint32]string
	enclosing map[uint32]uint32
}

func newResolver(m *Module, diags *Diagnostics) *resolver {
	return &resolver{
		m:        m,
		diags:    diags,
		refNames: make(map[uint32]string),
		defNames: make(map[uint32]string),
	}
}

func (r *resolver) typeName(t Token) (string, error) {
	switch t.Table {
	case TableTypeRef:
		return r.typeRefName(t.Row, 0)
	case TableTypeDef:
		return r.typeDefName(t.Row, 0)
	}
	return "", fmt.Errorf("%w: %s is not a named type", ErrBadSignature, t)
}

func (r *resolver) typeSpec(row uint32) ([]byte, error) {
	return r.m.TypeSpec(row)
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

func (r *resolver) typeRefName(row uint32, depth int) (string, error) {
	if name, ok := r.refNames[row]; ok {
		return name, nil
	}
	if depth > maxSignatureDepth {
		return "", fmt.Errorf("%w: type reference nesting too deep", ErrMalformed)
	}
	tr, err := r.m.TypeRef(row)
	if err != nil {
		return "", err
	}

	name := qualify(tr.Namespace, tr.Name)
	if tr.Scope.Table == TableTypeRef && !tr.Scope.IsNull() {
		outer, err := r.typeRefName(tr.Scope.Row, depth+1)
		if err != nil {
			return "", err
		}
		name = outer + "." + tr.Name
	}
	r.refNames[row] = name
	return name, nil
}

func (r *resolver) typeDefName(row uint32, depth int) (string, error) {
	if name, ok := r.defNames[row]; ok {
		return name, nil
	}
	if depth > maxSignatureDepth {
		return "", fmt.Errorf("%w: nested type chain too deep", ErrMalformed)
	}
	td, err := r.m.TypeDef(row)
	if err != nil {
		return "", err
	}

	name := qualify(td.Namespace, td.Name)
	if outer, ok := r.enclosingType(row); ok {
		outerName, err := r.typeDefName(outer, depth+1)
		if err != nil {
			return "", err
		}
		name = outerName + "." + td.Name
	}
	r.defNames[row] = name
	return name, nil
}

func (r *resolver) enclosingType(row uint32) (uint32, bool) {
	if r.enclosing == nil {
		r.enclosing = make(map[uint32]uint32)
		for i := uint32(1); i <= r.m.Rows(TableNestedClass); i++ {
			nc, err := r.m.NestedClass(i)
			if err != nil {
				continue
			}
			r.enclosing[nc.Nested] = nc.Enclosing
		}
	}
	outer, ok := r.enclosing[row]
	return outer, ok && outer != 0
}

// typeRefAssembly follows nested type references to the AssemblyRef row of
// the outermost type. It returns 0 for types scoped to this module.
func (r *resolver) typeRefAssembly(row uint32) (uint32, error) {
	for depth := 0; depth <= maxSignatureDepth; depth++ {
		tr, err := r.m.TypeRef(row)
		if err != nil {
			return 0, err
		}
		if tr.Scope.IsNull() {
			return 0, nil
		}
		switch tr.Scope.Table {
		case TableAssemblyRef:
			return tr.Scope.Row, nil
		case TableTypeRef:
			row = tr.Scope.Row
		default:
			return 0, nil
		}
	}
	return 0, fmt.Errorf("%w: type reference nesting too deep", ErrMalformed)
}

// memberParentType returns the TypeRef row that declares a member reference.
// Generic instantiations resolve to their generic type; other parents are
// local to the module.
func (r *resolver) memberParentType(parent Token) (uint32, bool, error) {
	switch parent.Table {
	case TableTypeRef:
		return parent.Row, !parent.IsNull(), nil
	case TableTypeSpec:
		spec, err := r.m.TypeSpec(parent.Row)
		if err != nil {
			return 0, false, err
		}
		if len(spec) < 2 || spec[0] != elemGenericInst {
			return 0, false, nil
		}
		d := newSigDecoder(spec[2:], r)
		t, err := d.typeDefOrRef()
		if err != nil {
			return 0, false, err
		}
		return t.Row, t.Table == TableTypeRef && !t.IsNull(), nil
	}
	return 0, false, nil
}

func (r *resolver) assemblyRefs() []model.AssemblyName {
	n := r.m.Rows(TableAssemblyRef)
	refs := make([]model.AssemblyName, n)
	for row := uint32(1); row <= n; row++ {
		ar, err := r.m.AssemblyRef(row)
		if err != nil {
			r.diags.Add(CodeBadAssemblyRef, Token{TableAssemblyRef, row}, err)
			continue
		}
		token := hex.EncodeToString(ar.PublicKeyOrToken)
		if ar.Flags&AssemblyFlagPublicKey != 0 {
			token = PublicKeyToken(ar.PublicKeyOrToken)
		}
		refs[row-1] = model.AssemblyName{
			Name:           ar.Name,
			Version:        ar.Version.String(),
			Culture:        ar.Culture,
			PublicKeyToken: token,
		}
	}
	return refs
}

func (r *resolver) references() []Reference {
	seen := make(map[Reference]struct{})
	var refs []Reference
	add := func(ref Reference) {
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	for row := uint32(1); row <= r.m.Rows(TableTypeRef); row++ {
		at := Token{TableTypeRef, row}
		asm, err := r.typeRefAssembly(row)
		if err != nil {
			r.diags.Add(CodeBadTypeRef, at, err)
			continue
		}
		if asm == 0 {
			continue
		}
		name, err := r.typeRefName(row, 0)
		if err != nil {
			r.diags.Add(CodeBadTypeRef, at, err)
			continue
		}
		add(Reference{MemberDocID: "T:" + name, TypeDocID: "T:" + name, AssemblyRef: asm})
	}

	for row := uint32(1); row <= r.m.Rows(TableMemberRef); row++ {
		at := Token{TableMemberRef, row}
		mr, err := r.m.MemberRef(row)
		if err != nil {
			r.diags.Add(CodeBadMemberRef, at, err)
			continue
		}
		typeRow, ok, err := r.memberParentType(mr.Parent)
		if err != nil {
			r.diags.Add(CodeBadMemberRef, at, err)
			continue
		}
		if !ok {
			continue
		}
		asm, err := r.typeRefAssembly(typeRow)
		if err != nil {
			r.diags.Add(CodeBadMemberRef, at, err)
			continue
		}
		if asm == 0 {
			continue
		}
		typeName, err := r.typeRefName(typeRow, 0)
		if err != nil {
			r.diags.Add(CodeBadMemberRef, at, err)
			continue
		}
		docID, err := memberDocID(typeName, mr.Name, mr.Signature, r)
		if err != nil {
			r.diags.Add(CodeBadSignature, at, err)
			continue
		}
		add(Reference{MemberDocID: docID, TypeDocID: "T:" + typeName, AssemblyRef: asm})
	}

	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.TypeDocID != b.TypeDocID {
			return a.TypeDocID < b.TypeDocID
		}
		if a.MemberDocID != b.MemberDocID {
			return a.MemberDocID < b.MemberDocID
		}
		return a.AssemblyRef < b.AssemblyRef
	})
	return refs
}

// assemblyAttributes reads the string arguments of the assembly-level
// TargetFramework and AssemblyFileVersion attributes.
func (r *resolver) assemblyAttributes() (targetFramework, fileVersion string) {
	for row := uint32(1); row <= r.m.Rows(TableCustomAttribute); row++ {
		at := Token{TableCustomAttribute, row}
		ca, err := r.m.CustomAttribute(row)
		if err != nil {
			r.diags.Add(CodeBadCustomAttribute, at, err)
			continue
		}
		if ca.Parent != (Token{TableAssembly, 1}) || ca.Constructor.Table != TableMemberRef {
			continue
		}
		mr, err := r.m.MemberRef(ca.Constructor.Row)
		if err != nil {
			r.diags.Add(CodeBadCustomAttribute, at, err)
			continue
		}
		if mr.Parent.Table != TableTypeRef || mr.Parent.IsNull() {
			continue
		}
		name, err := r.typeRefName(mr.Parent.Row, 0)
		if err != nil {
			r.diags.Add(CodeBadCustomAttribute, at, err)
			continue
		}
		if name != targetFrameworkAttribute && name != fileVersionAttribute {
			continue
		}

		value, err := fixedStringArgument(ca.Value)
		if err != nil {
			r.diags.Add(CodeBadCustomAttribute, at, err)
			continue
		}
		if name == targetFrameworkAttribute {
			targetFramework = value
		} else {
			fileVersion = value
		}
	}
	return targetFramework, fileVersion
}

// fixedStringArgument decodes the first fixed argument of a custom attribute
// value whose constructor takes a single string.
func fixedStringArgument(value []byte) (string, error) {
	if len(value) < 3 || value[0] != 0x01 || value[1] != 0x00 {
		return "", fmt.Errorf("%w: custom attribute prolog", ErrMalformed)
	}
	if value[2] == 0xFF {
		return "", nil
	}
	n, size, err := decompressUint(value[2:])
	if err != nil {
		return "", err
	}
	start := 2 + size
	if uint64(start)+uint64(n) > uint64(len(value)) {
		return "", fmt.Errorf("%w: custom attribute string", ErrTruncated)
	}
	return string(value[start : start+int(n)]), nil
}
