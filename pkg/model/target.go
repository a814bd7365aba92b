package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/simonhull/apiport/pkg/ordinal"
)

// Target is a platform/runtime identity such as ".NETFramework,Version=v4.8".
// Identifier is the short (family) form; FullName is the resolvable form.
type Target struct {
	Identifier string
	Version    Version
	Profile    string
}

// NewTarget creates a target without a profile.
func NewTarget(identifier string, version Version) Target {
	return Target{Identifier: identifier, Version: version}
}

// ParseTarget parses the full name form:
//
//	Identifier[,Version=v1.2][,Profile=Name]
//
// Key names are matched ignoring case and surrounding whitespace.
func ParseTarget(s string) (Target, error) {
	parts := strings.Split(s, ",")
	t := Target{Identifier: strings.TrimSpace(parts[0])}
	if t.Identifier == "" {
		return Target{}, fmt.Errorf("target %q has no identifier", s)
	}

	for _, p := range parts[1:] {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return Target{}, fmt.Errorf("target %q: component %q is not key=value", s, strings.TrimSpace(p))
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case ordinal.Equal(key, "Version"):
			v, err := ParseVersion(value)
			if err != nil {
				return Target{}, fmt.Errorf("target %q: %w", s, err)
			}
			t.Version = v
		case ordinal.Equal(key, "Profile"):
			t.Profile = value
		default:
			return Target{}, fmt.Errorf("target %q: unknown component %q", s, key)
		}
	}

	return t, nil
}

// MustParseTarget is ParseTarget for literals; it panics on error.
func MustParseTarget(s string) Target {
	t, err := ParseTarget(s)
	if err != nil {
		panic(err)
	}
	return t
}

// HasVersion reports whether the target names an explicit version.
func (t Target) HasVersion() bool {
	return !t.Version.IsZero()
}

// FullName returns the canonical resolvable name.
func (t Target) FullName() string {
	var b strings.Builder
	b.WriteString(t.Identifier)
	if t.HasVersion() {
		b.WriteString(",Version=v")
		b.WriteString(t.Version.String())
	}
	if t.Profile != "" {
		b.WriteString(",Profile=")
		b.WriteString(t.Profile)
	}
	return b.String()
}

// String returns FullName.
func (t Target) String() string {
	return t.FullName()
}

// Key returns the folded full name, suitable as a map key.
func (t Target) Key() string {
	return ordinal.Key(t.FullName())
}

// Equal compares two targets ignoring case.
func (t Target) Equal(o Target) bool {
	return ordinal.Equal(t.FullName(), o.FullName())
}

// SameFamily reports whether both targets share an identifier and profile.
func (t Target) SameFamily(o Target) bool {
	return ordinal.Equal(t.Identifier, o.Identifier) && ordinal.Equal(t.Profile, o.Profile)
}

// MarshalText implements encoding.TextMarshaler so targets serialize as their
// full name, including as JSON object keys.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.FullName()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(b []byte) error {
	parsed, err := ParseTarget(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SortTargets orders targets by full name, case-insensitive ordinal.
func SortTargets(targets []Target) {
	sort.SliceStable(targets, func(i, j int) bool {
		return ordinal.Less(targets[i].FullName(), targets[j].FullName())
	})
}

// TargetNames returns the full names of targets in order.
func TargetNames(targets []Target) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.FullName()
	}
	return names
}
