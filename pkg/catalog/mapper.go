package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/simonhull/apiport/pkg/ordinal"
)

// TargetMapper expands user-defined aliases into catalog target names.
type TargetMapper struct {
	mu      sync.RWMutex
	aliases map[string][]string // folded alias -> names
	names   map[string]string   // folded alias -> alias as written
}

type targetMapFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// NewTargetMapper creates an empty mapper.
func NewTargetMapper() *TargetMapper {
	return &TargetMapper{
		aliases: make(map[string][]string),
		names:   make(map[string]string),
	}
}

// LoadTargetMap reads aliases from a YAML file of the form
//
//	aliases:
//	  Mobile: ["Windows,Version=v8.1", "Windows Phone,Version=v8.1"]
func (m *TargetMapper) LoadTargetMap(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading target map: %w", err)
	}

	var file targetMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing target map %s: %w", path, err)
	}
	for alias, targets := range file.Aliases {
		if err := m.AddAlias(alias, targets...); err != nil {
			return fmt.Errorf("target map %s: %w", path, err)
		}
	}
	return nil
}

// AddAlias maps alias to one or more target names. An alias may not expand to
// itself.
func (m *TargetMapper) AddAlias(alias string, targets ...string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return fmt.Errorf("empty alias")
	}
	if len(targets) == 0 {
		return fmt.Errorf("alias %q has no targets", alias)
	}
	for _, t := range targets {
		if ordinal.Equal(strings.TrimSpace(t), alias) {
			return fmt.Errorf("alias %q refers to itself", alias)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := ordinal.Key(alias)
	m.aliases[key] = append(m.aliases[key], targets...)
	m.names[key] = alias
	return nil
}

// ResolveAliases returns the targets an alias stands for, or name itself
// when it is not an alias.
func (m *TargetMapper) ResolveAliases(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	targets, ok := m.aliases[ordinal.Key(strings.TrimSpace(name))]
	if !ok {
		return []string{name}
	}
	out := make([]string, len(targets))
	copy(out, targets)
	return out
}

// Aliases returns the known aliases in order.
func (m *TargetMapper) Aliases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.names))
	for _, alias := range m.names {
		out = append(out, alias)
	}
	ordinal.Sort(out)
	return out
}
