package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in       string
		fullName string
		wantErr  bool
	}{
		{in: ".NETFramework,Version=v4.5", fullName: ".NETFramework,Version=v4.5"},
		{in: ".NET Framework, Version=4.5", fullName: ".NET Framework,Version=v4.5"},
		{in: ".NETFramework,Version=v4.0,Profile=Client", fullName: ".NETFramework,Version=v4.0,Profile=Client"},
		{in: ".NETCoreApp", fullName: ".NETCoreApp"},
		{in: ",Version=v1.0", wantErr: true},
		{in: "X,Version=abc", wantErr: true},
		{in: "X,Flavor=Sweet", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fullName, got.FullName())
		})
	}
}

func TestSortTargets_CaseInsensitiveOrdinal(t *testing.T) {
	targets := []Target{
		MustParseTarget("Windows,Version=v8.0"),
		MustParseTarget(".NETStandard,Version=v1.6"),
		MustParseTarget(".netframework,Version=v1.1"),
		MustParseTarget(".NETCoreApp,Version=v3.1"),
	}

	SortTargets(targets)

	assert.Equal(t, []string{
		".NETCoreApp,Version=v3.1",
		".netframework,Version=v1.1",
		".NETStandard,Version=v1.6",
		"Windows,Version=v8.0",
	}, TargetNames(targets))
}

func TestVersion_Compare(t *testing.T) {
	assert.Equal(t, -1, MustParseVersion("4.5").Compare(MustParseVersion("4.5.1")))
	assert.Equal(t, 0, MustParseVersion("v4.5").Compare(MustParseVersion("4.5")))
	assert.Equal(t, 1, MustParseVersion("10.0").Compare(MustParseVersion("9.9.9.9")))
	assert.Equal(t, "4.0.30319.42000", MustParseVersion("4.0.30319.42000").String())
	assert.Equal(t, "1.0", MustParseVersion("1").String())
}

func TestBreakingChange_AppliesTo(t *testing.T) {
	fixed := MustParseVersion("4.7")
	b := BreakingChange{
		ID:            "1",
		Family:        ".NETFramework",
		VersionBroken: MustParseVersion("4.5"),
		VersionFixed:  &fixed,
	}

	assert.False(t, b.AppliesTo(MustParseTarget(".NETFramework,Version=v4.0")))
	assert.True(t, b.AppliesTo(MustParseTarget(".netframework,Version=v4.5")))
	assert.True(t, b.AppliesTo(MustParseTarget(".NETFramework,Version=v4.6.2")))
	assert.False(t, b.AppliesTo(MustParseTarget(".NETFramework,Version=v4.7")))
	assert.False(t, b.AppliesTo(MustParseTarget(".NETCoreApp,Version=v4.5")))
}

func TestParseAssemblyName(t *testing.T) {
	n := ParseAssemblyName("System.Runtime, Version=4.0.0.0, Culture=neutral, PublicKeyToken=b03f5f7f11d50a3a")

	assert.Equal(t, "System.Runtime", n.Name)
	assert.Equal(t, "4.0.0.0", n.Version)
	assert.Equal(t, "b03f5f7f11d50a3a", n.PublicKeyToken)
	assert.Equal(t, "Lib, Version=0.0.0.0, Culture=neutral, PublicKeyToken=null", AssemblyName{Name: "Lib"}.String())
}
