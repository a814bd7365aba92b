package report

import (
	"context"
	"sort"

	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
)

// Generator computes ReportingResults.
type Generator struct {
	logger logger.Logger
}

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{logger: logger.Default()}
}

// WithLogger returns a new Generator with the specified logger
func (g *Generator) WithLogger(log logger.Logger) *Generator {
	return &Generator{logger: log}
}

// ComputeReport summarizes one analysis. Every collection in the result is
// non-nil and sorted.
func (g *Generator) ComputeReport(ctx context.Context, in model.ReportInput) (*model.ReportingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	users := append([]model.AssemblyInfo(nil), in.UserAssemblies...)
	model.SortAssemblies(users)
	userSet := ordinal.NewSet()
	for _, u := range users {
		userSet.Add(u.AssemblyIdentity)
	}

	missing := make(map[model.MemberInfo]model.MissingMember, len(in.MissingDependencies))
	for _, m := range in.MissingDependencies {
		missing[m.MemberInfo] = m
	}

	result := &model.ReportingResult{
		SubmissionID:         in.SubmissionID,
		Targets:              in.Targets,
		RequestFlags:         in.RequestFlags,
		AssemblyUsage:        usage(users, userSet, in, missing),
		MissingTypes:         missingTypes(in, userSet),
		UnresolvedAssemblies: copyUnresolved(in.UnresolvedAssemblies),
		MissingAssemblies:    sortedCopy(in.MissingAssemblies),
		AssembliesWithErrors: sortedCopy(in.AssembliesWithErrors),
		NuGetPackages:        append([]model.NuGetPackageInfo{}, in.NuGetPackages...),
	}

	g.logger.Debug("Computed report",
		logger.F("submission", in.SubmissionID),
		logger.F("assemblies", len(result.AssemblyUsage)),
		logger.F("missing_types", len(result.MissingTypes)))
	return result, nil
}

func usage(users []model.AssemblyInfo, userSet *ordinal.Set, in model.ReportInput, missing map[model.MemberInfo]model.MissingMember) []model.AssemblyUsageInfo {
	out := make([]model.AssemblyUsageInfo, 0, len(users))
	members := in.Dependencies.Members()

	for _, u := range users {
		used := 0
		absent := make([]int, len(in.Targets))
		for _, m := range members {
			if userSet.Has(m.DefinedInAssemblyIdentity) || !references(in.Dependencies[m], u) {
				continue
			}
			used++
			mm, ok := missing[m]
			if !ok {
				continue
			}
			for ti, t := range in.Targets {
				if missingOn(mm, ti, t) {
					absent[ti]++
				}
			}
		}

		index := make([]float64, len(in.Targets))
		for ti := range in.Targets {
			index[ti] = 1
			if used > 0 {
				index[ti] = float64(used-absent[ti]) / float64(used)
			}
		}
		out = append(out, model.AssemblyUsageInfo{Assembly: u, MemberCount: used, PortabilityIndex: index})
	}
	return out
}

func references(referencers []model.AssemblyInfo, a model.AssemblyInfo) bool {
	for _, r := range referencers {
		if ordinal.Equal(r.AssemblyIdentity, a.AssemblyIdentity) {
			return true
		}
	}
	return false
}

// missingOn reports whether m is unavailable on target, the ti-th analyzed
// target. The status holds the introducing version for the target's family.
func missingOn(m model.MissingMember, ti int, target model.Target) bool {
	if ti >= len(m.TargetStatus) || m.TargetStatus[ti] == "" {
		return true
	}
	introduced, err := model.ParseVersion(m.TargetStatus[ti])
	if err != nil {
		return true
	}
	return target.Version.Compare(introduced) < 0
}

func missingTypes(in model.ReportInput, userSet *ordinal.Set) []model.MissingTypeInfo {
	type group struct {
		info   model.MissingTypeInfo
		usedIn *ordinal.Set
	}
	groups := make(map[string]*group)

	for _, m := range in.MissingDependencies {
		key := ordinal.Key(m.TypeDocID) + "\x00" + ordinal.Key(m.DefinedInAssemblyIdentity)
		g, ok := groups[key]
		if !ok {
			g = &group{
				info: model.MissingTypeInfo{
					TypeDocID:                 m.TypeDocID,
					DefinedInAssemblyIdentity: m.DefinedInAssemblyIdentity,
				},
				usedIn: ordinal.NewSet(),
			}
			groups[key] = g
		}
		g.info.Members = append(g.info.Members, m)
		for _, a := range in.Dependencies[m.MemberInfo] {
			if userSet.Has(a.AssemblyIdentity) {
				g.usedIn.Add(a.AssemblyIdentity)
			}
		}
	}

	out := make([]model.MissingTypeInfo, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g.info.Members, func(i, j int) bool {
			return model.CompareMembers(g.info.Members[i].MemberInfo, g.info.Members[j].MemberInfo) < 0
		})
		g.info.UsedIn = g.usedIn.Values()
		out = append(out, g.info)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := ordinal.Compare(out[i].TypeDocID, out[j].TypeDocID); c != 0 {
			return c < 0
		}
		return ordinal.Less(out[i].DefinedInAssemblyIdentity, out[j].DefinedInAssemblyIdentity)
	})
	return out
}

func copyUnresolved(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for name, referencers := range in {
		out[name] = sortedCopy(referencers)
	}
	return out
}

func sortedCopy(values []string) []string {
	out := append([]string{}, values...)
	ordinal.Sort(out)
	return out
}
