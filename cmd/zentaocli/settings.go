package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"zentaocli/internal/config"
)

// settingsGroups are the groups the commands remember values in.
var settingsGroups = []string{
	config.SettingsGroupExport,
	config.SettingsGroupBugQuery,
	config.SettingsGroupConsolidate,
	config.SettingsGroupAcceptance,
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change remembered values",
		Long: "Show or change the values the commands remember between runs.\n\nGroups: " +
			strings.Join(settingsGroups, ", ") + ". Passwords are never stored.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <group>",
			Short: "Print a settings group as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				values, err := a.store.Load(args[0], map[string]any{})
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(values, "", "    ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			},
		},
		&cobra.Command{
			Use:     "set <group> key=value...",
			Short:   "Change values of a settings group",
			Example: "  zentaocli settings set zentao_export product=网关 report_id=2026-001",
			Args:    cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				values, err := a.store.Load(args[0], map[string]any{})
				if err != nil {
					return err
				}
				for _, kv := range args[1:] {
					k, v, ok := strings.Cut(kv, "=")
					if !ok || strings.TrimSpace(k) == "" {
						return fmt.Errorf("expected key=value, got %q", kv)
					}
					values[strings.TrimSpace(k)] = v
				}
				if err := a.store.Save(args[0], values); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "saved", a.store.Path(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "path <group>",
			Short: "Print the file backing a settings group",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), a.store.Path(args[0]))
				return nil
			},
		},
	)
	return cmd
}
