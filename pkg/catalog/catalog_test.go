package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/apiport/pkg/model"
)

var (
	netfx11  = model.MustParseTarget(".NET Framework,Version=v1.1")
	netfx45  = model.MustParseTarget(".NET Framework,Version=v4.5")
	netfx48  = model.MustParseTarget(".NET Framework,Version=v4.8")
	netstd16 = model.MustParseTarget(".NET Standard,Version=v1.6")
	netstd20 = model.MustParseTarget(".NET Standard,Version=v2.0")
	win80    = model.MustParseTarget("Windows,Version=v8.0")
)

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(filepath.Join("testdata", "catalog.yml"), 16)
	require.NoError(t, err)
	return c
}

func member(docID string) model.MemberInfo {
	return model.MemberInfo{MemberDocID: docID}
}

func TestLoad(t *testing.T) {
	c := loadTestCatalog(t)
	ctx := context.Background()

	updated, err := c.LastUpdated(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), updated.UTC())

	assert.Equal(t, []string{".NET Standard"}, c.DefaultTargets())
	assert.Equal(t, []string{
		".NET Framework,Version=v1.1",
		".NET Framework,Version=v4.5",
		".NET Framework,Version=v4.8",
		".NET Standard,Version=v1.6",
		".NET Standard,Version=v2.0",
		"Windows,Version=v8.0",
		"Windows,Version=v8.1",
	}, model.TargetNames(c.Targets()))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"), 0)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("apis: [{supported: 3}"), 0o644))
	_, err = Load(bad, 0)
	assert.Error(t, err)

	_, err = New(Document{APIs: []API{{DocID: ""}}}, 0)
	assert.Error(t, err)
}

func TestIsMemberInTarget(t *testing.T) {
	c := loadTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		docID  string
		target model.Target
		want   bool
	}{
		{"T:System.Object", win80, true},
		{"t:system.object", win80, true},
		{"T:System.Console", win80, false},
		{"T:System.Console", netfx11, true},
		{"M:System.Net.WebClient.DownloadString(System.String)", netstd16, false},
		{"M:System.Net.WebClient.DownloadString(System.String)", netstd20, true},
		{"M:System.AppDomain.CreateDomain(System.String)", netstd20, false},
		{"M:Unknown.Api", netfx48, false},
	}

	for _, tt := range tests {
		t.Run(tt.docID+"@"+tt.target.FullName(), func(t *testing.T) {
			got, err := c.IsMemberInTarget(ctx, member(tt.docID), tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// Second call is served from the cache.
			got, err = c.IsMemberInTarget(ctx, member(tt.docID), tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookups(t *testing.T) {
	c := loadTestCatalog(t)
	ctx := context.Background()

	known, err := c.IsFrameworkMember(ctx, "M:System.Console.WriteLine(System.String)")
	require.NoError(t, err)
	assert.True(t, known)
	known, err = c.IsFrameworkMember(ctx, "M:MyApp.Program.Main")
	require.NoError(t, err)
	assert.False(t, known)

	v, err := c.IntroducedIn(ctx, "M:System.Net.WebClient.DownloadString(System.String)", netstd16)
	require.NoError(t, err)
	assert.Equal(t, "2.0", v)
	v, err = c.IntroducedIn(ctx, "T:System.Console", win80)
	require.NoError(t, err)
	assert.Empty(t, v)

	advice, err := c.RecommendedChanges(ctx, "M:System.AppDomain.CreateDomain(System.String)")
	require.NoError(t, err)
	assert.Equal(t, "Use AssemblyLoadContext instead.", advice)
}

func TestBreakingChangesFor(t *testing.T) {
	c := loadTestCatalog(t)
	ctx := context.Background()

	ids := func(target model.Target) []string {
		changes, err := c.BreakingChangesFor(ctx, target)
		require.NoError(t, err)
		var out []string
		for _, b := range changes {
			out = append(out, b.ID)
		}
		return out
	}

	assert.Empty(t, ids(netfx11))
	assert.Equal(t, []string{"BC1", "BC2"}, ids(netfx45))
	assert.Equal(t, []string{"BC2"}, ids(netfx48))
	assert.Empty(t, ids(netstd20))
}

func TestCancelledContext(t *testing.T) {
	c := loadTestCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.IsMemberInTarget(ctx, member("T:System.Object"), win80)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = c.BreakingChangesFor(ctx, netfx45)
	assert.ErrorIs(t, err, context.Canceled)
}
