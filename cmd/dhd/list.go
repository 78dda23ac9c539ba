package main

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List modules in dependency order",
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd.Context(), sessionConfig{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	selected, err := s.engine.SelectModules(s.modules, selection())
	if err != nil {
		return err
	}
	s.engine.PrintModules(selected)
	return nil
}
