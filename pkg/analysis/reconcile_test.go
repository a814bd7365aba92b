package analysis

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
)

func TestComputeAssembliesToRemove(t *testing.T) {
	cPartial := []model.NuGetPackageInfo{
		model.NewNuGetPackageInfo(idC, win80, packageIDs("C.Windows")),
		model.NewNuGetPackageInfo(idC, net11, nil),
		model.NewNuGetPackageInfo(idC, netstd16, packageIDs("C.Portable")),
	}
	cFull := []model.NuGetPackageInfo{
		model.NewNuGetPackageInfo(idC, win80, packageIDs("C.Windows")),
		model.NewNuGetPackageInfo(idC, net11, packageIDs("C.Legacy")),
		model.NewNuGetPackageInfo(idC, netstd16, packageIDs("C.Portable")),
	}

	tests := []struct {
		name     string
		users    []model.AssemblyInfo
		targets  []model.Target
		packages []model.NuGetPackageInfo
		want     []string
	}{
		{
			name:     "one target uncovered keeps assembly",
			users:    []model.AssemblyInfo{asmA, asmB, asmC},
			targets:  allTargets,
			packages: cPartial,
			want:     []string{},
		},
		{
			name:     "every target covered removes assembly",
			users:    []model.AssemblyInfo{asmA, asmB, asmC},
			targets:  allTargets,
			packages: cFull,
			want:     []string{idC},
		},
		{
			name:     "covered but not substitutable",
			users:    []model.AssemblyInfo{asmA, asmB, {AssemblyIdentity: idC}},
			targets:  allTargets,
			packages: cFull,
			want:     []string{},
		},
		{
			name:     "covered on the requested subset",
			users:    []model.AssemblyInfo{asmC},
			targets:  []model.Target{win80, netstd16},
			packages: cPartial,
			want:     []string{idC},
		},
		{
			name:     "no targets removes nothing",
			users:    []model.AssemblyInfo{asmC},
			targets:  nil,
			packages: cFull,
			want:     []string{},
		},
		{
			name:    "a duplicate empty record does not hide a covering one",
			users:   []model.AssemblyInfo{asmC},
			targets: []model.Target{win80},
			packages: []model.NuGetPackageInfo{
				model.NewNuGetPackageInfo(idC, win80, nil),
				model.NewNuGetPackageInfo(idC, win80, packageIDs("C.Windows")),
			},
			want: []string{idC},
		},
		{
			name:    "identity compared case-insensitively",
			users:   []model.AssemblyInfo{asmC},
			targets: []model.Target{win80},
			packages: []model.NuGetPackageInfo{
				model.NewNuGetPackageInfo("c, version=2.0.0.0, culture=neutral, publickeytoken=null", win80, packageIDs("C.Windows")),
			},
			want: []string{idC},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAssembliesToRemove(tt.users, tt.targets, tt.packages)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterDependencies(t *testing.T) {
	deps := model.Dependencies{}
	deps.Add(consoleWriteLine, asmA)
	deps.Add(consoleWriteLine, asmC)
	deps.Add(downloadString, asmC)
	deps.Add(createDomain, asmB)

	t.Run("removed assembly subtracted", func(t *testing.T) {
		got := FilterDependencies(deps, []string{idC})

		assert.Equal(t, []model.MemberInfo{createDomain, consoleWriteLine}, got.Members())
		assert.Equal(t, []model.AssemblyInfo{asmA}, got[consoleWriteLine])
		assert.NotContains(t, got, downloadString)
	})

	t.Run("nothing removed keeps everything", func(t *testing.T) {
		got := FilterDependencies(deps, nil)
		assert.Equal(t, deps, got)
	})

	t.Run("input left untouched", func(t *testing.T) {
		FilterDependencies(deps, []string{idA, idB, idC})
		assert.Len(t, deps, 3)
		assert.Len(t, deps[consoleWriteLine], 2)
	})
}

func TestFilterDependencies_NoEmptyReferencers(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := make([]model.AssemblyInfo, 6)
	for i := range pool {
		pool[i] = model.AssemblyInfo{AssemblyIdentity: fmt.Sprintf("Asm%d, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null", i)}
	}

	for round := 0; round < 50; round++ {
		deps := model.Dependencies{}
		for m := 0; m < 20; m++ {
			member := model.MemberInfo{MemberDocID: fmt.Sprintf("M:T.M%d", m), TypeDocID: "T:T"}
			for _, a := range pool {
				if rng.Intn(3) == 0 {
					deps.Add(member, a)
				}
			}
			if len(deps[member]) == 0 {
				deps.Add(member, pool[rng.Intn(len(pool))])
			}
		}

		var remove []string
		for _, a := range pool {
			if rng.Intn(2) == 0 {
				remove = append(remove, a.AssemblyIdentity)
			}
		}
		removed := ordinal.NewSet(remove...)

		got := FilterDependencies(deps, remove)
		for member, referencers := range deps {
			var want []model.AssemblyInfo
			for _, a := range referencers {
				if !removed.Has(a.AssemblyIdentity) {
					want = append(want, a)
				}
			}
			if len(want) == 0 {
				assert.NotContains(t, got, member, "round %d", round)
				continue
			}
			require.Contains(t, got, member, "round %d", round)
			assert.Equal(t, want, got[member], "round %d", round)
		}
		for member, referencers := range got {
			assert.NotEmpty(t, referencers, "round %d member %s", round, member)
		}
	}
}
