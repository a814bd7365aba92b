package model

import "strings"

// RequestFlags is a combinable set of analysis options.
type RequestFlags uint8

const (
	ShowNonPortableApis RequestFlags = 1 << iota
	ShowBreakingChanges
	ShowRetargettingIssues

	NoFlags RequestFlags = 0
)

// NewRequestFlags combines flags and resolves their implications.
func NewRequestFlags(flags ...RequestFlags) RequestFlags {
	var f RequestFlags
	for _, flag := range flags {
		f |= flag
	}
	return f.Resolve()
}

// Resolve applies the implication rules and is idempotent:
//   - ShowRetargettingIssues implies ShowBreakingChanges
//   - with neither ShowBreakingChanges nor ShowNonPortableApis, ShowNonPortableApis is on
func (f RequestFlags) Resolve() RequestFlags {
	if f.Has(ShowRetargettingIssues) {
		f |= ShowBreakingChanges
	}
	if f&(ShowBreakingChanges|ShowNonPortableApis) == 0 {
		f |= ShowNonPortableApis
	}
	return f
}

// Has reports whether every bit of flag is set.
func (f RequestFlags) Has(flag RequestFlags) bool {
	return f&flag == flag
}

// String lists the set flags, e.g. "ShowNonPortableApis|ShowBreakingChanges".
func (f RequestFlags) String() string {
	var names []string
	if f.Has(ShowNonPortableApis) {
		names = append(names, "ShowNonPortableApis")
	}
	if f.Has(ShowBreakingChanges) {
		names = append(names, "ShowBreakingChanges")
	}
	if f.Has(ShowRetargettingIssues) {
		names = append(names, "ShowRetargettingIssues")
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, "|")
}
