// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-council/internal/secrets"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage provider API keys sealed under a passphrase",
}

var credentialAddCmd = &cobra.Command{
	Use:   "add <provider>",
	Short: "Store an API key for a provider",
	Long: `Add seals an API key with the session passphrase (--passphrase or
RESEARCH_COUNCIL_PASSPHRASE) and stores it in the workspace database. The key
is read from --api-key, or from the first line of stdin when the flag is
omitted. A stored key takes precedence over the file in the secrets directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runCredentialAdd,
}

func runCredentialAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	key, _ := cmd.Flags().GetString("api-key")
	if key == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading API key from stdin: %w", err)
		}
		key = line
	}

	sess, err := session()
	if err != nil {
		return err
	}
	if sess == nil {
		return secrets.ErrLocked
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.svc.AddCredential(context.Background(), args[0], name, key, sess)
	if err != nil {
		return err
	}
	return printResult(c, func() {
		fmt.Printf("Stored credential %s for %s\n", c.ID, c.Provider)
	})
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials without their secrets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		creds, err := a.store.ListCredentials(context.Background())
		if err != nil {
			return err
		}
		return printResult(creds, func() {
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Provider", "Name", "Created"})
			for _, c := range creds {
				tw.AppendRow(table.Row{c.ID, c.Provider, c.Name, formatTime(c.CreatedAt)})
			}
			tw.Render()
		})
	},
}

func init() {
	credentialAddCmd.Flags().String("name", "", "label for the credential")
	credentialAddCmd.Flags().String("api-key", "", "API key (read from stdin when omitted)")

	credentialCmd.AddCommand(credentialAddCmd)
	credentialCmd.AddCommand(credentialListCmd)
	rootCmd.AddCommand(credentialCmd)
}
