package metadata

import "fmt"

// TableID identifies a metadata table.
type TableID uint8

const (
	TableModule TableID = iota
	TableTypeRef
	TableTypeDef
	TableFieldPtr
	TableField
	TableMethodPtr
	TableMethodDef
	TableParamPtr
	TableParam
	TableInterfaceImpl
	TableMemberRef
	TableConstant
	TableCustomAttribute
	TableFieldMarshal
	TableDeclSecurity
	TableClassLayout
	TableFieldLayout
	TableStandAloneSig
	TableEventMap
	TableEventPtr
	TableEvent
	TablePropertyMap
	TablePropertyPtr
	TableProperty
	TableMethodSemantics
	TableMethodImpl
	TableModuleRef
	TableTypeSpec
	TableImplMap
	TableFieldRVA
	TableEncLog
	TableEncMap
	TableAssembly
	TableAssemblyProcessor
	TableAssemblyOS
	TableAssemblyRef
	TableAssemblyRefProcessor
	TableAssemblyRefOS
	TableFile
	TableExportedType
	TableManifestResource
	TableNestedClass
	TableGenericParam
	TableMethodSpec
	TableGenericParamConstraint

	numTables
)

// tableNone marks an unused tag in a coded index.
const tableNone TableID = 0xFF

var tableNames = [numTables]string{
	"Module", "TypeRef", "TypeDef", "FieldPtr", "Field", "MethodPtr", "MethodDef",
	"ParamPtr", "Param", "InterfaceImpl", "MemberRef", "Constant", "CustomAttribute",
	"FieldMarshal", "DeclSecurity", "ClassLayout", "FieldLayout", "StandAloneSig",
	"EventMap", "EventPtr", "Event", "PropertyMap", "PropertyPtr", "Property",
	"MethodSemantics", "MethodImpl", "ModuleRef", "TypeSpec", "ImplMap", "FieldRVA",
	"EncLog", "EncMap", "Assembly", "AssemblyProcessor", "AssemblyOS", "AssemblyRef",
	"AssemblyRefProcessor", "AssemblyRefOS", "File", "ExportedType", "ManifestResource",
	"NestedClass", "GenericParam", "MethodSpec", "GenericParamConstraint",
}

func (t TableID) String() string {
	if t < numTables {
		return tableNames[t]
	}
	return fmt.Sprintf("Table(0x%02x)", uint8(t))
}

// codedIndex describes a tagged reference into one of several tables.
type codedIndex struct {
	bits   uint
	tables []TableID
}

var (
	ciTypeDefOrRef       = &codedIndex{2, []TableID{TableTypeDef, TableTypeRef, TableTypeSpec}}
	ciHasConstant        = &codedIndex{2, []TableID{TableField, TableParam, TableProperty}}
	ciHasCustomAttribute = &codedIndex{5, []TableID{
		TableMethodDef, TableField, TableTypeRef, TableTypeDef, TableParam,
		TableInterfaceImpl, TableMemberRef, TableModule, TableDeclSecurity, TableProperty,
		TableEvent, TableStandAloneSig, TableModuleRef, TableTypeSpec, TableAssembly,
		TableAssemblyRef, TableFile, TableExportedType, TableManifestResource,
		TableGenericParam, TableGenericParamConstraint, TableMethodSpec,
	}}
	ciHasFieldMarshal = &codedIndex{1, []TableID{TableField, TableParam}}
	ciHasDeclSecurity = &codedIndex{2, []TableID{TableTypeDef, TableMethodDef, TableAssembly}}
	ciMemberRefParent = &codedIndex{3, []TableID{TableTypeDef, TableTypeRef, TableModuleRef, TableMethodDef, TableTypeSpec}}
	ciHasSemantics    = &codedIndex{1, []TableID{TableEvent, TableProperty}}
	ciMethodDefOrRef  = &codedIndex{1, []TableID{TableMethodDef, TableMemberRef}}
	ciMemberForwarded = &codedIndex{1, []TableID{TableField, TableMethodDef}}
	ciImplementation  = &codedIndex{2, []TableID{TableFile, TableAssemblyRef, TableExportedType}}
	ciCustomAttrType  = &codedIndex{3, []TableID{tableNone, tableNone, TableMethodDef, TableMemberRef, tableNone}}
	ciResolutionScope = &codedIndex{2, []TableID{TableModule, TableModuleRef, TableAssemblyRef, TableTypeRef}}
	ciTypeOrMethodDef = &codedIndex{1, []TableID{TableTypeDef, TableMethodDef}}
)

type colKind uint8

const (
	colU16 colKind = iota
	colU32
	colString
	colGUID
	colBlob
	colIndex
	colCoded
)

type column struct {
	kind  colKind
	table TableID
	coded *codedIndex
}

var (
	cU16  = column{kind: colU16}
	cU32  = column{kind: colU32}
	cStr  = column{kind: colString}
	cGUID = column{kind: colGUID}
	cBlob = column{kind: colBlob}
)

func idx(t TableID) column { return column{kind: colIndex, table: t} }
func coded(c *codedIndex) column { return column{kind: colCoded, coded: c} }

// schemas lists the columns of every table in storage order. Constant.Type is
// a byte followed by a padding byte and is read as a u16.
var schemas = [numTables][]column{
	TableModule:                 {cU16, cStr, cGUID, cGUID, cGUID},
	TableTypeRef:                {coded(ciResolutionScope), cStr, cStr},
	TableTypeDef:                {cU32, cStr, cStr, coded(ciTypeDefOrRef), idx(TableField), idx(TableMethodDef)},
	TableFieldPtr:               {idx(TableField)},
	TableField:                  {cU16, cStr, cBlob},
	TableMethodPtr:              {idx(TableMethodDef)},
	TableMethodDef:              {cU32, cU16, cU16, cStr, cBlob, idx(TableParam)},
	TableParamPtr:               {idx(TableParam)},
	TableParam:                  {cU16, cU16, cStr},
	TableInterfaceImpl:          {idx(TableTypeDef), coded(ciTypeDefOrRef)},
	TableMemberRef:              {coded(ciMemberRefParent), cStr, cBlob},
	TableConstant:               {cU16, coded(ciHasConstant), cBlob},
	TableCustomAttribute:        {coded(ciHasCustomAttribute), coded(ciCustomAttrType), cBlob},
	TableFieldMarshal:           {coded(ciHasFieldMarshal), cBlob},
	TableDeclSecurity:           {cU16, coded(ciHasDeclSecurity), cBlob},
	TableClassLayout:            {cU16, cU32, idx(TableTypeDef)},
	TableFieldLayout:            {cU32, idx(TableField)},
	TableStandAloneSig:          {cBlob},
	TableEventMap:               {idx(TableTypeDef), idx(TableEvent)},
	TableEventPtr:               {idx(TableEvent)},
	TableEvent:                  {cU16, cStr, coded(ciTypeDefOrRef)},
	TablePropertyMap:            {idx(TableTypeDef), idx(TableProperty)},
	TablePropertyPtr:            {idx(TableProperty)},
	TableProperty:               {cU16, cStr, cBlob},
	TableMethodSemantics:        {cU16, idx(TableMethodDef), coded(ciHasSemantics)},
	TableMethodImpl:             {idx(TableTypeDef), coded(ciMethodDefOrRef), coded(ciMethodDefOrRef)},
	TableModuleRef:              {cStr},
	TableTypeSpec:               {cBlob},
	TableImplMap:                {cU16, coded(ciMemberForwarded), cStr, idx(TableModuleRef)},
	TableFieldRVA:               {cU32, idx(TableField)},
	TableEncLog:                 {cU32, cU32},
	TableEncMap:                 {cU32},
	TableAssembly:               {cU32, cU16, cU16, cU16, cU16, cU32, cBlob, cStr, cStr},
	TableAssemblyProcessor:      {cU32},
	TableAssemblyOS:             {cU32, cU32, cU32},
	TableAssemblyRef:            {cU16, cU16, cU16, cU16, cU32, cBlob, cStr, cStr, cBlob},
	TableAssemblyRefProcessor:   {cU32, idx(TableAssemblyRef)},
	TableAssemblyRefOS:          {cU32, cU32, cU32, idx(TableAssemblyRef)},
	TableFile:                   {cU32, cStr, cBlob},
	TableExportedType:           {cU32, cU32, cStr, cStr, coded(ciImplementation)},
	TableManifestResource:       {cU32, cU32, cStr, coded(ciImplementation)},
	TableNestedClass:            {idx(TableTypeDef), idx(TableTypeDef)},
	TableGenericParam:           {cU16, cU16, coded(ciTypeOrMethodDef), cStr},
	TableMethodSpec:             {coded(ciMethodDefOrRef), cBlob},
	TableGenericParamConstraint: {idx(TableGenericParam), coded(ciTypeDefOrRef)},
}

// Heap size flags of the "#~" header.
const (
	heapStringsWide = 0x01
	heapGUIDWide    = 0x02
	heapBlobWide    = 0x04
	heapExtraData   = 0x40
)

type tableInfo struct {
	rows    uint32
	offset  int
	rowSize int
	cols    []int // column offsets within a row
	widths  []int
}

type tableStream struct {
	data   []byte
	tables [numTables]tableInfo
}

// parseTableStream reads the "#~" header, computes every row layout and
// checks that all rows fit in the stream.
func parseTableStream(data []byte) (*tableStream, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("%w: table stream header", ErrTruncated)
	}
	heapSizes := data[6]
	valid := le.Uint64(data[8:])

	ts := &tableStream{data: data}
	pos := 24
	for i := 0; i < 64; i++ {
		if valid&(1<<uint(i)) == 0 {
			continue
		}
		if i >= int(numTables) {
			return nil, fmt.Errorf("%w: unsupported table 0x%02x", ErrMalformed, i)
		}
		if pos+4 > len(data) {
			return nil, fmt.Errorf("%w: row counts", ErrTruncated)
		}
		ts.tables[i].rows = le.Uint32(data[pos:])
		pos += 4
	}
	if heapSizes&heapExtraData != 0 {
		pos += 4
	}

	strWidth, guidWidth, blobWidth := 2, 2, 2
	if heapSizes&heapStringsWide != 0 {
		strWidth = 4
	}
	if heapSizes&heapGUIDWide != 0 {
		guidWidth = 4
	}
	if heapSizes&heapBlobWide != 0 {
		blobWidth = 4
	}

	for t := TableID(0); t < numTables; t++ {
		info := &ts.tables[t]
		info.cols = make([]int, len(schemas[t]))
		info.widths = make([]int, len(schemas[t]))
		for c, col := range schemas[t] {
			var w int
			switch col.kind {
			case colU16:
				w = 2
			case colU32:
				w = 4
			case colString:
				w = strWidth
			case colGUID:
				w = guidWidth
			case colBlob:
				w = blobWidth
			case colIndex:
				w = ts.indexWidth(col.table)
			case colCoded:
				w = ts.codedWidth(col.coded)
			}
			info.cols[c] = info.rowSize
			info.widths[c] = w
			info.rowSize += w
		}
	}

	for t := TableID(0); t < numTables; t++ {
		info := &ts.tables[t]
		info.offset = pos
		size := uint64(info.rows) * uint64(info.rowSize)
		if uint64(pos)+size > uint64(len(data)) {
			return nil, fmt.Errorf("%w: %s table", ErrTruncated, t)
		}
		pos += int(size)
	}
	return ts, nil
}

func (ts *tableStream) indexWidth(t TableID) int {
	if ts.tables[t].rows >= 1<<16 {
		return 4
	}
	return 2
}

func (ts *tableStream) codedWidth(c *codedIndex) int {
	limit := uint32(1) << (16 - c.bits)
	for _, t := range c.tables {
		if t != tableNone && ts.tables[t].rows >= limit {
			return 4
		}
	}
	return 2
}

// cell reads one column of a 1-based row. The row must be in range.
func (ts *tableStream) cell(t TableID, row uint32, col int) uint32 {
	info := &ts.tables[t]
	off := info.offset + int(row-1)*info.rowSize + info.cols[col]
	if info.widths[col] == 4 {
		return le.Uint32(ts.data[off:])
	}
	return uint32(le.Uint16(ts.data[off:]))
}

// Token is a resolved reference to a table row. Row is 1-based; the zero
// Token is a null reference.
type Token struct {
	Table TableID
	Row   uint32
}

// IsNull reports whether the token refers to no row.
func (t Token) IsNull() bool { return t.Row == 0 }

func (t Token) String() string {
	return fmt.Sprintf("%s[%d]", t.Table, t.Row)
}

// decodeCoded splits a coded index value and checks the referenced row exists.
func (ts *tableStream) decodeCoded(c *codedIndex, v uint32) (Token, error) {
	tag := v & (1<<c.bits - 1)
	row := v >> c.bits
	if int(tag) >= len(c.tables) || c.tables[tag] == tableNone {
		return Token{}, fmt.Errorf("%w: coded index tag %d", ErrMalformed, tag)
	}
	t := Token{Table: c.tables[tag], Row: row}
	if row > ts.tables[t.Table].rows {
		return Token{}, fmt.Errorf("%w: %s out of range", ErrMalformed, t)
	}
	return t, nil
}
