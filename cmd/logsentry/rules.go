package main

import (
	"fmt"
	"strings"

	"logsentry/internal/correlation"

	"github.com/spf13/cobra"
)

func newRulesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the detection rules and active exclusions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, rule := range correlation.BuiltinRules() {
				fmt.Fprintf(w, "%-40s  %-9s  sev=%-2d  %s\n",
					rule.ID, rule.Type, rule.Severity, rule.Name)
				if len(rule.Tags) > 0 {
					fmt.Fprintf(w, "    tags: %s\n", strings.Join(rule.Tags, ", "))
				}
				if rule.MITRE != nil {
					fmt.Fprintf(w, "    mitre: %s / %s\n", rule.MITRE.TacticID, rule.MITRE.TechniqueID)
				}
			}

			exclusions := cfg.Policy().Exclusions()
			fmt.Fprintf(w, "\nExclusions (%d):\n", len(exclusions))
			for _, e := range exclusions {
				fmt.Fprintf(w, "  message=%q user=%q\n", e.Message, e.User)
			}
			return nil
		},
	}
}
