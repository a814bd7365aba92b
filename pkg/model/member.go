package model

import (
	"sort"

	"github.com/simonhull/apiport/pkg/ordinal"
)

// MemberInfo is a referenced type or member. MemberDocID uses the
// documentation-id form ("T:System.Console", "M:System.Console.WriteLine(System.String)");
// for a type reference MemberDocID and TypeDocID are equal.
type MemberInfo struct {
	MemberDocID               string `json:"memberDocId"`
	TypeDocID                 string `json:"typeDocId"`
	DefinedInAssemblyIdentity string `json:"definedInAssemblyIdentity"`
}

// String returns the member doc-id.
func (m MemberInfo) String() string {
	return m.MemberDocID
}

// CompareMembers orders by declaring type, then member doc-id, then declaring
// assembly, each case-insensitive ordinal.
func CompareMembers(a, b MemberInfo) int {
	if c := ordinal.Compare(a.TypeDocID, b.TypeDocID); c != 0 {
		return c
	}
	if c := ordinal.Compare(a.MemberDocID, b.MemberDocID); c != 0 {
		return c
	}
	return ordinal.Compare(a.DefinedInAssemblyIdentity, b.DefinedInAssemblyIdentity)
}

// SortMembers sorts members with CompareMembers.
func SortMembers(members []MemberInfo) {
	sort.SliceStable(members, func(i, j int) bool { return CompareMembers(members[i], members[j]) < 0 })
}

// MissingMember is a member absent from at least one target.
type MissingMember struct {
	MemberInfo
	// TargetStatus holds, per analyzed target and in target order, the version
	// that introduced the member in that target's family or "" when unsupported.
	TargetStatus       []string `json:"targetStatus"`
	RecommendedChanges string   `json:"recommendedChanges,omitempty"`
}

// Dependencies maps each referenced member to the assemblies that use it.
// Referencing slices are never empty and hold each assembly once.
type Dependencies map[MemberInfo][]AssemblyInfo

// Add records that from references member. Adding the same pair twice is a
// no-op.
func (d Dependencies) Add(member MemberInfo, from AssemblyInfo) {
	for _, existing := range d[member] {
		if ordinal.Equal(existing.AssemblyIdentity, from.AssemblyIdentity) {
			return
		}
	}
	d[member] = append(d[member], from)
}

// Merge adds every edge of other into d.
func (d Dependencies) Merge(other Dependencies) {
	for member, froms := range other {
		for _, from := range froms {
			d.Add(member, from)
		}
	}
}

// Members returns the keys in CompareMembers order.
func (d Dependencies) Members() []MemberInfo {
	members := make([]MemberInfo, 0, len(d))
	for m := range d {
		members = append(members, m)
	}
	SortMembers(members)
	return members
}
