// Package ordinal implements the case-insensitive ordinal string rules used for
// assembly identities, member doc-ids and target names.
//
// Each rune is uppercased with its simple one-to-one mapping and the results
// are compared as UTF-16 code units, so ordering and equality match
// OrdinalIgnoreCase in the .NET runtime and never depend on the process locale.
package ordinal

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf16"
)

// Key returns the uppercased form of s. Two strings are equal under the
// ordinal ignore-case rule exactly when their keys are equal.
func Key(s string) string {
	if !needsMapping(s) {
		return s
	}
	return strings.Map(upper, s)
}

// upper is the simple uppercase mapping. Dotless i and long s keep their own
// code points in ordinal casing.
func upper(r rune) rune {
	switch r {
	case '\u0131', '\u017F':
		return r
	}
	return unicode.ToUpper(r)
}

// Equal reports whether a and b are equal ignoring case.
func Equal(a, b string) bool {
	if a == b {
		return true
	}
	return Key(a) == Key(b)
}

// Compare orders a and b ignoring case. Ties between strings that differ only
// by case are broken by plain byte order so sorting stays deterministic.
func Compare(a, b string) int {
	if c := compareUTF16(Key(a), Key(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// compareUTF16 orders by UTF-16 code units. Byte order agrees except when a
// supplementary rune meets a BMP rune at or above U+E000.
func compareUTF16(a, b string) int {
	if isASCII(a) && isASCII(b) {
		return strings.Compare(a, b)
	}
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	}
	return 0
}

// Less is Compare(a, b) < 0, for use with sort.Slice.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Sort sorts values in place.
func Sort(values []string) {
	sort.SliceStable(values, func(i, j int) bool { return Less(values[i], values[j]) })
}

func needsMapping(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= 0x80 || ('a' <= b && b <= 'z') {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// Set is a string set keyed by uppercased form. The first spelling added is kept.
type Set struct {
	items map[string]string
}

// NewSet creates a set holding values.
func NewSet(values ...string) *Set {
	s := &Set{items: make(map[string]string, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v and reports whether it was not already present.
func (s *Set) Add(v string) bool {
	if s.items == nil {
		s.items = make(map[string]string)
	}
	k := Key(v)
	if _, ok := s.items[k]; ok {
		return false
	}
	s.items[k] = v
	return true
}

// Remove deletes v from the set.
func (s *Set) Remove(v string) {
	delete(s.items, Key(v))
}

// Has reports whether v is in the set.
func (s *Set) Has(v string) bool {
	if s == nil {
		return false
	}
	_, ok := s.items[Key(v)]
	return ok
}

// Len returns the number of values.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Values returns the values in ordinal ignore-case order.
func (s *Set) Values() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	Sort(out)
	return out
}
