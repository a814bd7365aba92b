package model

import "github.com/simonhull/apiport/pkg/ordinal"

// NuGetPackageID is a candidate package. Two ids are equal when all three
// fields are equal.
type NuGetPackageID struct {
	PackageID string `json:"packageId"`
	Version   string `json:"version"`
	URL       string `json:"url,omitempty"`
}

// NuGetPackageInfo records the packages that can supply an assembly for one
// target. Identity is (assembly, target) only: two records for the same pair
// are duplicates whatever their package lists hold.
type NuGetPackageInfo struct {
	assemblyIdentity  string
	target            Target
	supportedPackages []NuGetPackageID
}

// NewNuGetPackageInfo builds a record. The package slice is copied.
func NewNuGetPackageInfo(assemblyIdentity string, target Target, packages []NuGetPackageID) NuGetPackageInfo {
	supported := make([]NuGetPackageID, len(packages))
	copy(supported, packages)

	return NuGetPackageInfo{
		assemblyIdentity:  assemblyIdentity,
		target:            target,
		supportedPackages: supported,
	}
}

// AssemblyIdentity returns the assembly the record is about.
func (p NuGetPackageInfo) AssemblyIdentity() string { return p.assemblyIdentity }

// Target returns the target the record is about.
func (p NuGetPackageInfo) Target() Target { return p.target }

// SupportedPackages returns a copy of the package list; empty when none was found.
func (p NuGetPackageInfo) SupportedPackages() []NuGetPackageID {
	out := make([]NuGetPackageID, len(p.supportedPackages))
	copy(out, p.supportedPackages)
	return out
}

// HasPackages reports whether at least one package was found.
func (p NuGetPackageInfo) HasPackages() bool {
	return len(p.supportedPackages) > 0
}

// Key is the deduplication key: folded assembly identity and target.
func (p NuGetPackageInfo) Key() string {
	return ordinal.Key(p.assemblyIdentity) + "\x00" + p.target.Key()
}

// Equal reports whether both records are for the same assembly and target.
func (p NuGetPackageInfo) Equal(o NuGetPackageInfo) bool {
	return p.Key() == o.Key()
}

// UnionNuGetPackageInfos returns the records of first followed by those of
// second not already present, dropping duplicates by Key. The first record
// seen for a key wins.
func UnionNuGetPackageInfos(first, second []NuGetPackageInfo) []NuGetPackageInfo {
	seen := make(map[string]struct{}, len(first)+len(second))
	out := make([]NuGetPackageInfo, 0, len(first)+len(second))
	for _, list := range [][]NuGetPackageInfo{first, second} {
		for _, p := range list {
			k := p.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

type nugetPackageInfoJSON struct {
	AssemblyIdentity  string           `json:"assemblyIdentity"`
	Target            Target           `json:"target"`
	SupportedPackages []NuGetPackageID `json:"supportedPackages"`
}
