package analysis

import (
	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
)

// ComputeAssembliesToRemove returns the identities of the user assemblies a
// package can replace: the assembly opted in to substitution and every target
// has a record for it with at least one package. The result is sorted.
func ComputeAssembliesToRemove(userAssemblies []model.AssemblyInfo, targets []model.Target, packages []model.NuGetPackageInfo) []string {
	covered := make(map[string]bool, len(packages))
	for _, p := range packages {
		if p.HasPackages() {
			covered[p.Key()] = true
		}
	}

	remove := ordinal.NewSet()
	if len(targets) == 0 {
		return remove.Values()
	}

	for _, a := range userAssemblies {
		if !a.PackageSubstitutable {
			continue
		}
		all := true
		for _, t := range targets {
			if !covered[model.NewNuGetPackageInfo(a.AssemblyIdentity, t, nil).Key()] {
				all = false
				break
			}
		}
		if all {
			remove.Add(a.AssemblyIdentity)
		}
	}
	return remove.Values()
}

// FilterDependencies returns a new dependency map with the removed assemblies
// subtracted from every referencing set. Members left without referencers
// are dropped.
func FilterDependencies(dependencies model.Dependencies, assembliesToRemove []string) model.Dependencies {
	removed := ordinal.NewSet(assembliesToRemove...)
	out := make(model.Dependencies, len(dependencies))

	for member, referencers := range dependencies {
		var kept []model.AssemblyInfo
		for _, a := range referencers {
			if !removed.Has(a.AssemblyIdentity) {
				kept = append(kept, a)
			}
		}
		if len(kept) > 0 {
			out[member] = kept
		}
	}
	return out
}
