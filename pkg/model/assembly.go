package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/simonhull/apiport/pkg/ordinal"
)

// AssemblyInfo describes one assembly taking part in an analysis.
type AssemblyInfo struct {
	// AssemblyIdentity is the canonical display name:
	// "Name, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null".
	AssemblyIdentity string `json:"assemblyIdentity"`
	FileVersion      string `json:"fileVersion,omitempty"`
	// TargetFrameworkMoniker comes from the assembly's TargetFrameworkAttribute.
	TargetFrameworkMoniker string `json:"targetFrameworkMoniker,omitempty"`
	Location               string `json:"location,omitempty"`
	// IsExplicitlySpecified is true when the user named the file directly
	// rather than it being found by a directory scan.
	IsExplicitlySpecified bool `json:"isExplicitlySpecified"`
	// PackageSubstitutable opts the assembly in to being replaced by a package
	// recommendation when every target is covered by one.
	PackageSubstitutable bool `json:"packageSubstitutable"`
	// Unresolved marks an assembly known only by reference.
	Unresolved bool `json:"unresolved,omitempty"`
}

// Key returns the folded identity.
func (a AssemblyInfo) Key() string {
	return ordinal.Key(a.AssemblyIdentity)
}

// Name returns the simple name part of the identity.
func (a AssemblyInfo) Name() string {
	return ParseAssemblyName(a.AssemblyIdentity).Name
}

// String returns the identity.
func (a AssemblyInfo) String() string {
	return a.AssemblyIdentity
}

// SortAssemblies orders assemblies by identity, case-insensitive ordinal.
func SortAssemblies(assemblies []AssemblyInfo) {
	sort.SliceStable(assemblies, func(i, j int) bool {
		return ordinal.Less(assemblies[i].AssemblyIdentity, assemblies[j].AssemblyIdentity)
	})
}

// AssemblyName is a parsed assembly identity.
type AssemblyName struct {
	Name           string
	Version        string
	Culture        string
	PublicKeyToken string
}

// ParseAssemblyName splits a display name into its parts. Missing parts are
// left empty; unknown parts are ignored.
func ParseAssemblyName(identity string) AssemblyName {
	parts := strings.Split(identity, ",")
	n := AssemblyName{Name: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch {
		case ordinal.Equal(key, "Version"):
			n.Version = value
		case ordinal.Equal(key, "Culture"):
			n.Culture = value
		case ordinal.Equal(key, "PublicKeyToken"):
			n.PublicKeyToken = value
		}
	}
	return n
}

// String formats the canonical display name. Empty culture prints as
// "neutral" and an empty token as "null".
func (n AssemblyName) String() string {
	culture := n.Culture
	if culture == "" {
		culture = "neutral"
	}
	token := n.PublicKeyToken
	if token == "" {
		token = "null"
	}
	version := n.Version
	if version == "" {
		version = "0.0.0.0"
	}
	return fmt.Sprintf("%s, Version=%s, Culture=%s, PublicKeyToken=%s", n.Name, version, culture, token)
}

// IgnoreAssemblyInfo excludes an assembly from breaking-change analysis.
// An empty TargetsIgnored means every target.
type IgnoreAssemblyInfo struct {
	AssemblyIdentity string   `json:"assemblyIdentity" yaml:"assembly"`
	TargetsIgnored   []string `json:"targetsIgnored,omitempty" yaml:"targets,omitempty"`
}
