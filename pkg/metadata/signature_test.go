package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompressUint(t *testing.T) {
	tests := []struct {
		in   []byte
		want uint32
		size int
	}{
		{[]byte{0x03}, 0x03, 1},
		{[]byte{0x7F}, 0x7F, 1},
		{[]byte{0x80, 0x80}, 0x80, 2},
		{[]byte{0xBF, 0xFF}, 0x3FFF, 2},
		{[]byte{0xC0, 0x00, 0x40, 0x00}, 0x4000, 4},
		{[]byte{0xDF, 0xFF, 0xFF, 0xFF}, 0x1FFFFFFF, 4},
	}
	for _, tt := range tests {
		got, size, err := decompressUint(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.size, size)
	}

	_, _, err := decompressUint([]byte{0xFF})
	assert.ErrorIs(t, err, ErrMalformed)
	_, _, err = decompressUint([]byte{0xC0, 0x00})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestStripArity(t *testing.T) {
	assert.Equal(t, "System.Collections.Generic.List", stripArity("System.Collections.Generic.List`1"))
	assert.Equal(t, "Dictionary.KeyCollection", stripArity("Dictionary`2.KeyCollection"))
	assert.Equal(t, "System.Int32", stripArity("System.Int32"))
}

type stubNamer map[uint32]string

func (s stubNamer) typeName(t Token) (string, error) { return s[t.Row], nil }
func (s stubNamer) typeSpec(uint32) ([]byte, error) { return nil, ErrMalformed }

func TestMemberDocID(t *testing.T) {
	names := stubNamer{1: "System.Object", 2: "System.Collections.Generic.IList`1"}

	tests := []struct {
		name   string
		member string
		sig    []byte
		want   string
	}{
		{"field", "Count", []byte{0x06, 0x08}, "F:T.Count"},
		{"no parameters", "Run", []byte{0x00, 0x00, 0x01}, "M:T.Run"},
		{"static constructor", ".cctor", []byte{0x00, 0x00, 0x01}, "M:T.#cctor"},
		{"class parameter", "Equals", []byte{0x20, 0x01, 0x02, 0x12, 0x05}, "M:T.Equals(System.Object)"},
		{"pointer", "Copy", []byte{0x00, 0x01, 0x01, 0x0F, 0x05}, "M:T.Copy(System.Byte*)"},
		{"multi-dimensional array", "Fill", []byte{0x00, 0x01, 0x01, 0x14, 0x08, 0x02, 0x00, 0x00}, "M:T.Fill(System.Int32[0:,0:])"},
		{"generic instance", "Use", []byte{0x00, 0x01, 0x01, 0x15, 0x12, 0x09, 0x01, 0x0E}, "M:T.Use(System.Collections.Generic.IList{System.String})"},
		{"modifier is dropped", "Pin", []byte{0x00, 0x01, 0x01, 0x1F, 0x05, 0x08}, "M:T.Pin(System.Int32)"},
		{"vararg tail is dropped", "Printf", []byte{0x05, 0x02, 0x01, 0x0E, 0x41, 0x08}, "M:T.Printf(System.String)"},
		{"explicit implementation", "System.IDisposable.Dispose", []byte{0x20, 0x00, 0x01}, "M:T.System#IDisposable#Dispose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := memberDocID("T", tt.member, tt.sig, names)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemberDocID_Errors(t *testing.T) {
	names := stubNamer{}

	tests := []struct {
		name string
		sig  []byte
	}{
		{"empty", nil},
		{"unknown element", []byte{0x00, 0x01, 0x01, 0x99}},
		{"missing return type", []byte{0x00, 0x00}},
		{"parameter count past end", []byte{0x00, 0x7F, 0x01}},
		{"type spec lookup fails", []byte{0x00, 0x01, 0x01, 0x12, 0x06}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := memberDocID("T", "M", tt.sig, names)
			assert.Error(t, err)
		})
	}
}
