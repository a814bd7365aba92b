package dependency

import (
	"strings"

	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
)

// DefaultFrameworkPublicKeyTokens are the tokens platform assemblies are
// signed with.
var DefaultFrameworkPublicKeyTokens = []string{
	"b77a5c561934e089",
	"b03f5f7f11d50a3a",
	"31bf3856ad364e35",
	"cc7b13ffcd2ddd51",
	"7cec85d7bea7798e",
	"adb9793829ddae60",
}

// Filter classifies referenced assemblies.
type Filter struct {
	tokens  *ordinal.Set
	exclude *ordinal.Set
}

// NewFilter builds a filter. Empty tokens fall back to
// DefaultFrameworkPublicKeyTokens; exclude lists assembly names whose
// references are dropped.
func NewFilter(tokens, exclude []string) *Filter {
	if len(tokens) == 0 {
		tokens = DefaultFrameworkPublicKeyTokens
	}
	return &Filter{
		tokens:  ordinal.NewSet(tokens...),
		exclude: ordinal.NewSet(exclude...),
	}
}

// IsFrameworkAssembly reports whether references into name are API
// dependencies to check against the catalog.
func (f *Filter) IsFrameworkAssembly(name model.AssemblyName) bool {
	token := strings.TrimSpace(name.PublicKeyToken)
	return token != "" && f.tokens.Has(token)
}

// IsExcluded reports whether references into name are ignored entirely.
func (f *Filter) IsExcluded(name model.AssemblyName) bool {
	return f.exclude.Has(name.Name)
}
