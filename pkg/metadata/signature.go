package metadata

import (
	"fmt"
	"strconv"
	"strings"
)

// Element types (ECMA-335 II.23.1.16).
const (
	elemVoid        = 0x01
	elemBoolean     = 0x02
	elemChar        = 0x03
	elemI1          = 0x04
	elemU1          = 0x05
	elemI2          = 0x06
	elemU2          = 0x07
	elemI4          = 0x08
	elemU4          = 0x09
	elemI8          = 0x0A
	elemU8          = 0x0B
	elemR4          = 0x0C
	elemR8          = 0x0D
	elemString      = 0x0E
	elemPtr         = 0x0F
	elemByRef       = 0x10
	elemValueType   = 0x11
	elemClass       = 0x12
	elemVar         = 0x13
	elemArray       = 0x14
	elemGenericInst = 0x15
	elemTypedByRef  = 0x16
	elemI           = 0x18
	elemU           = 0x19
	elemFnPtr       = 0x1B
	elemObject      = 0x1C
	elemSzArray     = 0x1D
	elemMVar        = 0x1E
	elemCModReqd    = 0x1F
	elemCModOpt     = 0x20
	elemSentinel    = 0x41
	elemPinned      = 0x45
)

// Calling convention bits.
const (
	sigField   = 0x06
	sigGeneric = 0x10
	sigKind    = 0x0F
)

const maxSignatureDepth = 64

var primitiveNames = map[byte]string{
	elemVoid:       "System.Void",
	elemBoolean:    "System.Boolean",
	elemChar:       "System.Char",
	elemI1:         "System.SByte",
	elemU1:         "System.Byte",
	elemI2:         "System.Int16",
	elemU2:         "System.UInt16",
	elemI4:         "System.Int32",
	elemU4:         "System.UInt32",
	elemI8:         "System.Int64",
	elemU8:         "System.UInt64",
	elemR4:         "System.Single",
	elemR8:         "System.Double",
	elemString:     "System.String",
	elemTypedByRef: "System.TypedReference",
	elemI:          "System.IntPtr",
	elemU:          "System.UIntPtr",
	elemObject:     "System.Object",
}

// typeNamer supplies the names signature decoding needs from the module.
type typeNamer interface {
	typeName(t Token) (string, error)
	typeSpec(row uint32) ([]byte, error)
}

type sigDecoder struct {
	b     []byte
	pos   int
	names typeNamer
	depth int
}

func newSigDecoder(b []byte, names typeNamer) *sigDecoder {
	return &sigDecoder{b: b, names: names}
}

func (d *sigDecoder) next() (byte, error) {
	if d.pos >= len(d.b) {
		return 0, fmt.Errorf("%w: unexpected end", ErrBadSignature)
	}
	c := d.b[d.pos]
	d.pos++
	return c, nil
}

func (d *sigDecoder) peek() (byte, error) {
	if d.pos >= len(d.b) {
		return 0, fmt.Errorf("%w: unexpected end", ErrBadSignature)
	}
	return d.b[d.pos], nil
}

func (d *sigDecoder) uint() (uint32, error) {
	if d.pos >= len(d.b) {
		return 0, fmt.Errorf("%w: unexpected end", ErrBadSignature)
	}
	v, n, err := decompressUint(d.b[d.pos:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	d.pos += n
	return v, nil
}

// typeDefOrRef reads a TypeDefOrRefOrSpecEncoded token.
func (d *sigDecoder) typeDefOrRef() (Token, error) {
	v, err := d.uint()
	if err != nil {
		return Token{}, err
	}
	t := Token{Row: v >> 2}
	switch v & 3 {
	case 0:
		t.Table = TableTypeDef
	case 1:
		t.Table = TableTypeRef
	case 2:
		t.Table = TableTypeSpec
	default:
		return Token{}, fmt.Errorf("%w: bad type token tag", ErrBadSignature)
	}
	return t, nil
}

// namedType formats a token from a signature, expanding type specs.
func (d *sigDecoder) namedType(t Token) (string, error) {
	if t.Table != TableTypeSpec {
		return d.names.typeName(t)
	}
	spec, err := d.names.typeSpec(t.Row)
	if err != nil {
		return "", err
	}
	sub := &sigDecoder{b: spec, names: d.names, depth: d.depth + 1}
	return sub.typ()
}

// typ decodes one Type and formats it in documentation-id form.
func (d *sigDecoder) typ() (string, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > maxSignatureDepth {
		return "", fmt.Errorf("%w: nesting too deep", ErrBadSignature)
	}

	e, err := d.next()
	if err != nil {
		return "", err
	}
	if name, ok := primitiveNames[e]; ok {
		return name, nil
	}

	switch e {
	case elemPtr, elemByRef, elemSzArray:
		inner, err := d.typ()
		if err != nil {
			return "", err
		}
		switch e {
		case elemPtr:
			return inner + "*", nil
		case elemByRef:
			return inner + "@", nil
		default:
			return inner + "[]", nil
		}

	case elemValueType, elemClass:
		t, err := d.typeDefOrRef()
		if err != nil {
			return "", err
		}
		return d.namedType(t)

	case elemVar, elemMVar:
		n, err := d.uint()
		if err != nil {
			return "", err
		}
		if e == elemMVar {
			return "``" + strconv.FormatUint(uint64(n), 10), nil
		}
		return "`" + strconv.FormatUint(uint64(n), 10), nil

	case elemArray:
		return d.array()

	case elemGenericInst:
		return d.genericInst()

	case elemFnPtr:
		_, ret, params, err := d.method()
		if err != nil {
			return "", err
		}
		return "=FUNC:" + ret + "(" + strings.Join(params, ",") + ")", nil

	case elemCModReqd, elemCModOpt:
		if _, err := d.typeDefOrRef(); err != nil {
			return "", err
		}
		return d.typ()

	case elemPinned:
		return d.typ()
	}
	return "", fmt.Errorf("%w: element type 0x%02x", ErrBadSignature, e)
}

func (d *sigDecoder) array() (string, error) {
	elem, err := d.typ()
	if err != nil {
		return "", err
	}
	rank, err := d.uint()
	if err != nil {
		return "", err
	}
	// Sizes and lower bounds do not appear in documentation ids.
	for i := 0; i < 2; i++ {
		n, err := d.uint()
		if err != nil {
			return "", err
		}
		for j := uint32(0); j < n; j++ {
			if _, err := d.uint(); err != nil {
				return "", err
			}
		}
	}
	if rank <= 1 {
		return elem + "[]", nil
	}
	dims := make([]string, rank)
	for i := range dims {
		dims[i] = "0:"
	}
	return elem + "[" + strings.Join(dims, ",") + "]", nil
}

func (d *sigDecoder) genericInst() (string, error) {
	if _, err := d.next(); err != nil { // CLASS or VALUETYPE
		return "", err
	}
	t, err := d.typeDefOrRef()
	if err != nil {
		return "", err
	}
	name, err := d.namedType(t)
	if err != nil {
		return "", err
	}
	count, err := d.uint()
	if err != nil {
		return "", err
	}
	if count > uint32(len(d.b)) {
		return "", fmt.Errorf("%w: generic argument count %d", ErrBadSignature, count)
	}
	args := make([]string, count)
	for i := range args {
		if args[i], err = d.typ(); err != nil {
			return "", err
		}
	}
	return stripArity(name) + "{" + strings.Join(args, ",") + "}", nil
}

// method decodes a MethodDefSig or MethodRefSig starting at its calling
// convention byte. Vararg parameters after the sentinel are dropped.
func (d *sigDecoder) method() (arity uint32, ret string, params []string, err error) {
	conv, err := d.next()
	if err != nil {
		return 0, "", nil, err
	}
	if conv&sigGeneric != 0 {
		if arity, err = d.uint(); err != nil {
			return 0, "", nil, err
		}
	}
	count, err := d.uint()
	if err != nil {
		return 0, "", nil, err
	}
	if count > uint32(len(d.b)) {
		return 0, "", nil, fmt.Errorf("%w: parameter count %d", ErrBadSignature, count)
	}
	if ret, err = d.typ(); err != nil {
		return 0, "", nil, err
	}
	params = make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		c, err := d.peek()
		if err != nil {
			return 0, "", nil, err
		}
		if c == elemSentinel {
			break
		}
		p, err := d.typ()
		if err != nil {
			return 0, "", nil, err
		}
		params = append(params, p)
	}
	return arity, ret, params, nil
}

// stripArity removes the "`N" suffix of every segment of a type name.
func stripArity(name string) string {
	if !strings.Contains(name, "`") {
		return name
	}
	var b strings.Builder
	b.Grow(len(name))
	skip := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '`':
			skip = true
		case skip && c >= '0' && c <= '9':
		default:
			skip = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

// memberDocID formats the documentation id of a member reference on the type
// named typeName. It returns "F:..." for field signatures and "M:..." for
// method signatures.
func memberDocID(typeName, member string, sig []byte, names typeNamer) (string, error) {
	if len(sig) == 0 {
		return "", fmt.Errorf("%w: empty", ErrBadSignature)
	}
	d := newSigDecoder(sig, names)
	name := typeName + "." + strings.ReplaceAll(member, ".", "#")

	if sig[0]&sigKind == sigField {
		d.pos++
		if _, err := d.typ(); err != nil {
			return "", err
		}
		return "F:" + name, nil
	}

	arity, ret, params, err := d.method()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("M:")
	b.WriteString(name)
	if arity > 0 {
		b.WriteString("``")
		b.WriteString(strconv.FormatUint(uint64(arity), 10))
	}
	if len(params) > 0 {
		b.WriteByte('(')
		b.WriteString(strings.Join(params, ","))
		b.WriteByte(')')
	}
	if member == "op_Implicit" || member == "op_Explicit" {
		b.WriteByte('~')
		b.WriteString(ret)
	}
	return b.String(), nil
}
