// Package analyzer turns an AnalyzeRequest into an AnalyzeResponse.
//
// The RequestAnalyzer runs a fixed sequence of stages, each consuming the
// results of the one before:
//
//	TargetsResolved
//	PackagesForUserAssembliesComputed
//	AssembliesToRemoveComputed
//	DependenciesFiltered
//	NonPortableComputed        (ShowNonPortableApis)
//	UnresolvedComputed
//	BreakingChangesComputed    (ShowBreakingChanges)
//	PackagesForMissingComputed
//	ReportAssembled
//
// Conditional stages that are switched off still advance the state and leave
// empty, non-nil results so every response has the same shape.
package analyzer
