package model

import "github.com/simonhull/apiport/pkg/ordinal"

// BreakingChange describes a catalogued behavior change between versions of a
// target family.
type BreakingChange struct {
	ID             string   `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Details        string   `json:"details,omitempty" yaml:"details,omitempty"`
	Suggestion     string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Link           string   `json:"link,omitempty" yaml:"link,omitempty"`
	ApplicableAPIs []string `json:"applicableApis" yaml:"apis"`
	// Family is the target identifier the change applies to.
	Family        string   `json:"family" yaml:"family"`
	VersionBroken Version  `json:"versionBroken" yaml:"version_broken"`
	VersionFixed  *Version `json:"versionFixed,omitempty" yaml:"version_fixed,omitempty"`
	IsRetargeting bool     `json:"isRetargeting" yaml:"retargeting"`
	IsQuirked     bool     `json:"isQuirked" yaml:"quirked"`
	IsBuildTime   bool     `json:"isBuildTime" yaml:"build_time"`
}

// AppliesTo reports whether target lies in [VersionBroken, VersionFixed) of
// the change's family.
func (b BreakingChange) AppliesTo(target Target) bool {
	if b.Family != "" && !ordinal.Equal(b.Family, target.Identifier) {
		return false
	}
	if target.Version.Compare(b.VersionBroken) < 0 {
		return false
	}
	if b.VersionFixed != nil && target.Version.Compare(*b.VersionFixed) >= 0 {
		return false
	}
	return true
}

// BreakingChangeDependency is a use of a member affected by a breaking change.
type BreakingChangeDependency struct {
	Break             BreakingChange `json:"break"`
	Member            MemberInfo     `json:"member"`
	DependantAssembly AssemblyInfo   `json:"dependantAssembly"`
	Target            Target         `json:"target"`
}
