package model

import "time"

// AnalyzeRequest is the sole input of the request analyzer.
type AnalyzeRequest struct {
	ApplicationName string `json:"applicationName"`
	Description     string `json:"description,omitempty"`
	// Targets are requested names; aliases and implicit versions are allowed.
	Targets        []string       `json:"targets"`
	UserAssemblies []AssemblyInfo `json:"userAssemblies"`
	Dependencies   Dependencies   `json:"-"`
	// UnresolvedAssemblies lists referenced assemblies that were not found.
	UnresolvedAssemblies []string `json:"unresolvedAssemblies"`
	// UnresolvedAssembliesDictionary maps an unresolved assembly to the
	// assemblies referencing it. When set, its keys take precedence over
	// UnresolvedAssemblies.
	UnresolvedAssembliesDictionary map[string][]string  `json:"unresolvedAssembliesDictionary,omitempty"`
	AssembliesWithErrors           []string             `json:"assembliesWithErrors,omitempty"`
	AssembliesToIgnore             []IgnoreAssemblyInfo `json:"assembliesToIgnore,omitempty"`
	BreakingChangesToSuppress      []string             `json:"breakingChangesToSuppress,omitempty"`
	RequestFlags                   RequestFlags         `json:"requestFlags"`
}

// UnresolvedAssemblyNames returns the dictionary keys when the dictionary is
// set, otherwise UnresolvedAssemblies.
func (r *AnalyzeRequest) UnresolvedAssemblyNames() []string {
	if r.UnresolvedAssembliesDictionary == nil {
		return r.UnresolvedAssemblies
	}
	names := make([]string, 0, len(r.UnresolvedAssembliesDictionary))
	for name := range r.UnresolvedAssembliesDictionary {
		names = append(names, name)
	}
	return names
}

// AnalyzeResponse is the result of one analysis. It is built once by the
// request analyzer and not modified afterwards.
type AnalyzeResponse struct {
	ApplicationName                 string                     `json:"applicationName"`
	SubmissionID                    string                     `json:"submissionId"`
	CatalogLastUpdated              time.Time                  `json:"catalogLastUpdated"`
	Targets                         []Target                   `json:"targets"`
	MissingDependencies             []MissingMember            `json:"missingDependencies"`
	UnresolvedUserAssemblies        []string                   `json:"unresolvedUserAssemblies"`
	BreakingChanges                 []BreakingChangeDependency `json:"breakingChanges"`
	BreakingChangeSkippedAssemblies []AssemblyInfo             `json:"breakingChangeSkippedAssemblies"`
	NuGetPackages                   []NuGetPackageInfo         `json:"nuGetPackages"`
	ReportingResult                 *ReportingResult           `json:"reportingResult"`
}
