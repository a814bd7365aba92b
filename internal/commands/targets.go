package commands

import (
	"fmt"
	"strings"

	"github.com/simonhull/apiport/pkg/catalog"
	"github.com/simonhull/apiport/pkg/ordinal"
	"github.com/simonhull/apiport/pkg/output"
	"github.com/spf13/cobra"
)

var targetsMap string

var targetsCmd = &cobra.Command{
	Use:          "targets",
	Short:        "List the targets known to the catalog",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runTargets,
}

func init() {
	targetsCmd.Flags().StringVar(&targetsMap, "target-map", "", "YAML file of target aliases")

	RootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadSettings()
	if err != nil {
		output.Error(err.Error())
		return err
	}

	cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.CacheSize)
	if err != nil {
		output.Error(err.Error())
		return err
	}

	mapper := catalog.NewTargetMapper()
	path := targetsMap
	if path == "" {
		path = cfg.Targets.MapFile
	}
	if path != "" {
		if err := mapper.LoadTargetMap(path); err != nil {
			output.Error(err.Error())
			return err
		}
	}

	printTargets(cat, mapper, cfg.Targets.Default)
	return nil
}

// printTargets lists each framework with its versions. Defaults from the
// config take precedence over the catalog's own.
func printTargets(cat *catalog.Catalog, mapper *catalog.TargetMapper, defaults []string) {
	if len(defaults) == 0 {
		defaults = cat.DefaultTargets()
	}

	output.Header("Available targets")
	rows := [][]string{{"Target", "Versions", "Default"}}
	for _, fw := range cat.Frameworks() {
		name := fw.Identifier
		if fw.Profile != "" {
			name += ",Profile=" + fw.Profile
		}
		versions := make([]string, len(fw.Versions))
		for i, v := range fw.Versions {
			versions[i] = v.String()
		}
		mark := ""
		if isDefault(fw.Identifier, defaults) {
			mark = "*"
		}
		rows = append(rows, []string{name, strings.Join(versions, ", "), mark})
	}
	output.Table(rows)

	aliases := mapper.Aliases()
	if len(aliases) == 0 {
		return
	}
	fmt.Println()
	output.Header("Aliases")
	rows = [][]string{{"Alias", "Targets"}}
	for _, alias := range aliases {
		rows = append(rows, []string{alias, strings.Join(mapper.ResolveAliases(alias), "; ")})
	}
	output.Table(rows)
}

// isDefault matches identifier against default names, which may carry a
// version ("Name,Version=v1.0").
func isDefault(identifier string, defaults []string) bool {
	for _, d := range defaults {
		name, _, _ := strings.Cut(d, ",")
		if ordinal.Equal(strings.TrimSpace(name), identifier) {
			return true
		}
	}
	return false
}
