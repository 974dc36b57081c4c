// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the workspace database and planning documents",
	Long: `Init opens (and migrates) the workspace database and creates the
planning documents PLAN.md, BACKLOG.md, FRONTIER_MAP.md, DESIGN_PLAYBOOK.md,
DATA_CATALOG.md, EVAL_RUBRIC.md and DECISIONS.md when they are missing.
Existing files are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.workspace.EnsureRequiredFiles()
		if err != nil {
			return err
		}
		for _, name := range created {
			fmt.Printf("Created %s\n", name)
		}
		fmt.Printf("Workspace ready at %s (%d file(s) created)\n", a.cfg.Workspace, len(created))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
