package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/pylift/internal/rules"
	"github.com/codewithboateng/pylift/internal/rulesdsl"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the pattern catalog",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

func init() {
	rulesCmd.Flags().Bool("json", false, "emit JSON")
	rulesCmd.Flags().StringSlice("rules", nil, "extra YAML rule packs")
}

func runRules(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	packs, _ := cmd.Flags().GetStringSlice("rules")
	reg, err := rulesdsl.Extend(rules.Builtin(), append(cfg.Analysis.RulePacks, packs...))
	if err != nil {
		return configFailure(err)
	}
	selected, err := cfg.Settings().Select(reg)
	if err != nil {
		return configFailure(err)
	}
	enabled := map[string]string{}
	for _, d := range selected {
		enabled[d.ID] = d.Severity.String()
	}

	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		type row struct {
			ID       string   `json:"id"`
			Summary  string   `json:"summary"`
			Severity string   `json:"severity"`
			Enabled  bool     `json:"enabled"`
			Kinds    []string `json:"kinds"`
			Source   string   `json:"source"`
		}
		var out []row
		for _, d := range reg.List() {
			sev, on := enabled[d.ID]
			if !on {
				sev = d.Severity.String()
			}
			out = append(out, row{ID: d.ID, Summary: d.Summary, Severity: sev, Enabled: on, Kinds: d.Kinds.Names(), Source: d.Source})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tENABLED\tKINDS\tSUMMARY")
	for _, d := range reg.List() {
		sev, on := enabled[d.ID]
		if !on {
			sev = d.Severity.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", d.ID, sev, on, strings.Join(d.Kinds.Names(), ","), d.Summary)
	}
	return tw.Flush()
}
