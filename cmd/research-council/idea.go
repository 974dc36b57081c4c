// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-council/internal/pipeline"
	"github.com/pdiddy/research-council/pkg/types"
)

var ideaCmd = &cobra.Command{
	Use:   "idea",
	Short: "Inspect ideas, record gate decisions and drive resubmission",
}

// withIdea opens the workspace and parses the leading idea id argument.
func withIdea(args []string, fn func(ctx context.Context, a *app, ideaID int64) error) error {
	id, err := parseID(args[0], "idea id")
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a, id)
}

func renderIdeas(ideas []types.Idea) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Run", "Title", "Lane", "Status", "Updated"})
	for _, i := range ideas {
		status := i.Status
		if status == types.IdeaDrafted {
			status = "drafted"
		}
		tw.AppendRow(table.Row{i.ID, i.RunID, truncate(i.Title, 40), i.LanePrimary, status, formatTime(i.UpdatedAt)})
	}
	tw.Render()
}

func renderGates(gates []types.GateResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Gate", "Status", "Notes", "Updated"})
	for _, g := range gates {
		tw.AppendRow(table.Row{g.Gate, g.Status, truncate(g.Notes, 70), formatTime(g.UpdatedAt)})
	}
	tw.Render()
}

var ideaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ideas, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetInt64("run")
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ideas, err := a.store.ListIdeas(context.Background(), runID)
		if err != nil {
			return err
		}
		return printResult(ideas, func() { renderIdeas(ideas) })
	},
}

var ideaShowCmd = &cobra.Command{
	Use:   "show <idea-id>",
	Short: "Show an idea with its gates, latest parts and latest council round",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdea(args, func(ctx context.Context, a *app, id int64) error {
			d, err := a.svc.IdeaDetail(ctx, id)
			if err != nil {
				return err
			}
			return printResult(d, func() {
				fmt.Printf("Idea %d (run %d): %s\n", d.Idea.ID, d.Idea.RunID, d.Idea.Title)
				if d.Idea.BigClaim != "" {
					fmt.Printf("Big claim: %s\n", d.Idea.BigClaim)
				}
				renderGates(d.Gates)

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Part", "Length", "Updated"})
				for _, p := range d.Parts {
					tw.AppendRow(table.Row{p.Kind, len(p.Content), formatTime(p.UpdatedAt)})
				}
				tw.Render()

				if d.Round != nil {
					fmt.Printf("Council round %d: %s, %d memo(s)\n", d.Round.RoundNumber, d.Round.Status, len(d.Memos))
				}
			})
		})
	},
}

var ideaGateCmd = &cobra.Command{
	Use:   "gate <idea-id> <gate> <passed|failed|needs_revision>",
	Short: "Record a manual gate decision",
	Long: `Gate records a reviewer's decision for one numbered gate. Gates 2
(design) and 3 (data) are only ever set this way; the pipeline resets them
to needs_revision on every revision.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid gate %q", args[1])
		}
		notes, _ := cmd.Flags().GetString("notes")
		return withIdea(args, func(ctx context.Context, a *app, id int64) error {
			g, err := a.svc.SetGate(ctx, id, n, types.GateStatus(args[2]), notes)
			if err != nil {
				return err
			}
			return printResult(g, func() { renderGates([]types.GateResult{g}) })
		})
	},
}

var ideaReviseCmd = &cobra.Command{
	Use:   "revise <idea-id>",
	Short: "Append the latest council revisions to every dossier part",
	Long: `Revise snapshots the dossier, extracts the required revisions from the
latest council round and appends them as a dated revision log to every part.
The idea is marked resubmitted and gates 2-4 are reset to needs_revision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdea(args, func(ctx context.Context, a *app, id int64) error {
			res, err := a.svc.AutoRevise(ctx, id)
			if err != nil {
				return err
			}
			return printResult(res, func() {
				fmt.Printf("Idea %d %s: %d revision(s), snapshot %s\n", id, res.Status, res.Revisions, res.VersionID)
			})
		})
	},
}

var ideaResubmitCmd = &cobra.Command{
	Use:   "resubmit <idea-id>",
	Short: "Snapshot, revise and optionally re-run the council",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts pipeline.ResubmitOptions
		if cmd.Flags().Changed("apply-revisions") {
			apply, _ := cmd.Flags().GetBool("apply-revisions")
			opts.ApplyRevisions = &apply
		}
		opts.RunReview, _ = cmd.Flags().GetBool("review")
		opts.Provider, _ = cmd.Flags().GetString("provider")
		opts.Model, _ = cmd.Flags().GetString("model")

		sess, err := session()
		if err != nil {
			return err
		}
		return withIdea(args, func(ctx context.Context, a *app, id int64) error {
			res, err := a.svc.Resubmit(ctx, id, opts, sess)
			if err != nil {
				return err
			}
			return printResult(res, func() {
				fmt.Printf("Idea %d %s: %d revision(s), snapshot %s\n", id, res.Status, res.Revisions, res.VersionID)
				if res.Gate4 != nil {
					renderGates([]types.GateResult{*res.Gate4})
				}
			})
		})
	},
}

var ideaVersionsCmd = &cobra.Command{
	Use:   "versions <idea-id>",
	Short: "List dossier snapshots, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdea(args, func(ctx context.Context, a *app, id int64) error {
			versions, err := a.svc.Versions(ctx, id)
			if err != nil {
				return err
			}
			return printResult(versions, func() {
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Version", "Label", "Created"})
				for _, v := range versions {
					tw.AppendRow(table.Row{v.ID, v.Label, v.CreatedAt})
				}
				tw.Render()
			})
		})
	},
}

var ideaVersionCmd = &cobra.Command{
	Use:   "version <idea-id> <version-id>",
	Short: "Print one dossier snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdea(args, func(ctx context.Context, a *app, id int64) error {
			v, err := a.svc.Version(ctx, id, args[1])
			if err != nil {
				return err
			}
			return printResult(v, func() {
				fmt.Println(v.Metadata)
				for _, p := range v.Parts {
					fmt.Printf("\n## %s\n\n%s\n", p.Kind, p.Content)
				}
				for _, m := range v.Memos {
					fmt.Printf("\n## %s\n\n%s\n", m.Referee, m.Content)
				}
			})
		})
	},
}

var ideaRoundsCmd = &cobra.Command{
	Use:   "rounds <idea-id>",
	Short: "List council rounds, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdea(args, func(ctx context.Context, a *app, id int64) error {
			rounds, err := a.svc.Rounds(ctx, id)
			if err != nil {
				return err
			}
			return printResult(rounds, func() {
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Round", "Status", "Notes", "Created"})
				for _, r := range rounds {
					tw.AppendRow(table.Row{r.ID, r.RoundNumber, r.Status, truncate(r.Notes, 60), formatTime(r.CreatedAt)})
				}
				tw.Render()
			})
		})
	},
}

var ideaRoundCmd = &cobra.Command{
	Use:   "round <idea-id> <round-id>",
	Short: "Print a council round with its memos",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roundID, err := parseID(args[1], "round id")
		if err != nil {
			return err
		}
		return withIdea(args, func(ctx context.Context, a *app, id int64) error {
			d, err := a.svc.Round(ctx, id, roundID)
			if err != nil {
				return err
			}
			return printResult(d, func() {
				fmt.Printf("Round %d: %s\n", d.Round.RoundNumber, d.Round.Status)
				if d.Round.Notes != "" {
					fmt.Println(d.Round.Notes)
				}
				for _, m := range d.Memos {
					fmt.Printf("\n## %s\n\n%s\n", m.Referee, m.Content)
				}
			})
		})
	},
}

var ideaExportCmd = &cobra.Command{
	Use:   "export <idea-id>",
	Short: "Write the full history of an idea to YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return withIdea(args, func(ctx context.Context, a *app, id int64) error {
			path := out
			if path == "" {
				path = filepath.Join(a.workspace.IdeaDir(id), "report.yaml")
			}
			if err := a.store.ExportReport(ctx, id, path); err != nil {
				return err
			}
			fmt.Printf("Exported idea %d to %s\n", id, path)
			return nil
		})
	},
}

func init() {
	ideaListCmd.Flags().Int64("run", 0, "only ideas of this run")
	ideaGateCmd.Flags().String("notes", "", "decision notes")

	ideaResubmitCmd.Flags().Bool("apply-revisions", true, "append the revision log to every part")
	ideaResubmitCmd.Flags().Bool("review", false, "re-run the council and rescore Gate 4")
	ideaResubmitCmd.Flags().String("provider", "", "provider for the council review")
	ideaResubmitCmd.Flags().String("model", "", "model for the council review")

	ideaExportCmd.Flags().String("out", "", "output path; .json selects JSON (default ideas/<id>/report.yaml)")

	ideaCmd.AddCommand(ideaListCmd)
	ideaCmd.AddCommand(ideaShowCmd)
	ideaCmd.AddCommand(ideaGateCmd)
	ideaCmd.AddCommand(ideaReviseCmd)
	ideaCmd.AddCommand(ideaResubmitCmd)
	ideaCmd.AddCommand(ideaVersionsCmd)
	ideaCmd.AddCommand(ideaVersionCmd)
	ideaCmd.AddCommand(ideaRoundsCmd)
	ideaCmd.AddCommand(ideaRoundCmd)
	ideaCmd.AddCommand(ideaExportCmd)
	rootCmd.AddCommand(ideaCmd)
}
