// Package analysis decides which referenced members are missing on each
// target, which assemblies packages can replace, and which usages hit known
// breaking changes.
//
// The reconciler functions (ComputeAssembliesToRemove, FilterDependencies)
// are pure. The Engine consults a Catalog and a PackageFinder; per-target
// work runs concurrently over a dependency set that is never mutated.
package analysis
