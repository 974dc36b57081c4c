// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var literatureCmd = &cobra.Command{
	Use:   "literature",
	Short: "Manage literature assessments injected into prompts",
}

var literatureSetCmd = &cobra.Command{
	Use:   "set-assessment <query-id>",
	Short: "Set the assessment text of a literature query",
	Long: `Set-assessment stores the synthesis text of a literature query. Runs
started with --literature-query inject it into every prompt, and with
--seeds the list after an "idea prompts" line seeds the first ideas.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queryID, err := parseID(args[0], "query id")
		if err != nil {
			return err
		}
		file, _ := cmd.Flags().GetString("file")
		content, err := readContent(file)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		la, err := a.store.PutLiteratureAssessment(context.Background(), queryID, content)
		if err != nil {
			return err
		}
		return printResult(la, func() {
			fmt.Printf("Stored assessment for query %d (%d bytes)\n", la.QueryID, len(la.Content))
		})
	},
}

func init() {
	literatureSetCmd.Flags().String("file", "-", "file holding the assessment (- for stdin)")

	literatureCmd.AddCommand(literatureSetCmd)
	rootCmd.AddCommand(literatureCmd)
}

// readContent returns the text of path, or stdin when path is "-" or empty.
func readContent(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		path = "stdin"
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
