package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wagiedev/linebridge-go"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Show the response framing rules in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			table := cfg.RuleTable()
			if len(table) == 0 {
				fmt.Fprintln(out, "No rules configured; every command is answered by a single line.")
				return nil
			}

			fmt.Fprintln(out, renderRules(table))
			fmt.Fprintln(out, "Commands not listed are answered by a single line.")
			return nil
		},
	}
}

func renderRules(rules linebridge.RuleTable) string {
	kinds := slices.Sorted(maps.Keys(rules))

	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rule := rules[kind]
		rows = append(rows, []string{kind, describeRule(rule), strings.Join(rule.Terminal, ", ")})
	}

	return renderTable([]string{"Command", "Follow-up lines", "Terminal headers"}, rows, nil)
}

func describeRule(rule linebridge.Rule) string {
	if rule.CountField >= 0 {
		return "header field " + strconv.Itoa(rule.CountField)
	}
	return strconv.Itoa(rule.FixedLines)
}
