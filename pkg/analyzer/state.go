package analyzer

// State is a pipeline stage reached by the analyzer.
type State int

const (
	StateInitial State = iota
	StateTargetsResolved
	StatePackagesForUserAssembliesComputed
	StateAssembliesToRemoveComputed
	StateDependenciesFiltered
	StateNonPortableComputed
	StateUnresolvedComputed
	StateBreakingChangesComputed
	StatePackagesForMissingComputed
	StateReportAssembled
)

var stateNames = [...]string{
	StateInitial:                           "Initial",
	StateTargetsResolved:                   "TargetsResolved",
	StatePackagesForUserAssembliesComputed: "PackagesForUserAssembliesComputed",
	StateAssembliesToRemoveComputed:        "AssembliesToRemoveComputed",
	StateDependenciesFiltered:              "DependenciesFiltered",
	StateNonPortableComputed:               "NonPortableComputed",
	StateUnresolvedComputed:                "UnresolvedComputed",
	StateBreakingChangesComputed:           "BreakingChangesComputed",
	StatePackagesForMissingComputed:        "PackagesForMissingComputed",
	StateReportAssembled:                   "ReportAssembled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}
