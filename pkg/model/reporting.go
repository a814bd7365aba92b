package model

// ReportingResult is the report generator's view of an analysis. The request
// analyzer embeds it in the response without looking inside.
type ReportingResult struct {
	SubmissionID         string              `json:"submissionId"`
	Targets              []Target            `json:"targets"`
	RequestFlags         RequestFlags        `json:"requestFlags"`
	AssemblyUsage        []AssemblyUsageInfo `json:"assemblyUsage"`
	MissingTypes         []MissingTypeInfo   `json:"missingTypes"`
	UnresolvedAssemblies map[string][]string `json:"unresolvedAssemblies"`
	MissingAssemblies    []string            `json:"missingAssemblies"`
	AssembliesWithErrors []string            `json:"assembliesWithErrors"`
	NuGetPackages        []NuGetPackageInfo  `json:"nuGetPackages"`
}

// AssemblyUsageInfo summarizes one user assembly.
type AssemblyUsageInfo struct {
	Assembly AssemblyInfo `json:"assembly"`
	// MemberCount is the number of distinct external members referenced.
	MemberCount int `json:"memberCount"`
	// PortabilityIndex holds, per target and in target order, the fraction of
	// referenced members available on that target (1 when nothing is missing).
	PortabilityIndex []float64 `json:"portabilityIndex"`
}

// MissingTypeInfo groups the missing members of one type.
type MissingTypeInfo struct {
	TypeDocID                 string          `json:"typeDocId"`
	DefinedInAssemblyIdentity string          `json:"definedInAssemblyIdentity"`
	UsedIn                    []string        `json:"usedIn"`
	Members                   []MissingMember `json:"members"`
}

// ReportInput is everything the analyzer hands to the report generator.
type ReportInput struct {
	Targets              []Target
	SubmissionID         string
	RequestFlags         RequestFlags
	UserAssemblies       []AssemblyInfo
	Dependencies         Dependencies
	MissingDependencies  []MissingMember
	UnresolvedAssemblies map[string][]string
	MissingAssemblies    []string
	AssembliesWithErrors []string
	NuGetPackages        []NuGetPackageInfo
}
