// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-council/internal/pipeline"
	"github.com/pdiddy/research-council/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start and inspect generation runs",
}

var runStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Generate a batch of idea dossiers",
	Long: `Start queues a run and processes it to completion. Each idea gets a
pitch checked by Gate 1 (with up to two retries), then design, data plan,
positioning and next-steps sections and a council review scored by Gate 4.
Ideas whose pitch fails Gate 1 stop after the pitch.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	req := pipeline.RunRequest{}
	req.Provider, _ = cmd.Flags().GetString("provider")
	req.Model, _ = cmd.Flags().GetString("model")
	req.IdeaCount, _ = cmd.Flags().GetInt("count")
	req.TopicFocus, _ = cmd.Flags().GetString("topic")
	req.UseAssessmentSeeds, _ = cmd.Flags().GetBool("seeds")
	if cmd.Flags().Changed("literature-query") {
		q, _ := cmd.Flags().GetInt64("literature-query")
		req.LiteratureQueryID = &q
	}

	sess, err := session()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	run, err := a.svc.StartRun(ctx, req, sess)
	if err != nil {
		return err
	}
	fmt.Printf("Run %d queued: %d idea(s) with %s/%s\n", run.ID, run.IdeaCount, run.Provider, run.Model)
	if err := a.svc.Wait(ctx); err != nil {
		return err
	}
	if err := showRun(ctx, a, run.ID); err != nil {
		return err
	}

	run, err = a.store.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	if run.Status == types.RunFailed {
		return fmt.Errorf("run %d failed: %s", run.ID, run.Log)
	}
	return nil
}

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.store.ListRuns(context.Background(), limit)
		if err != nil {
			return err
		}
		return printResult(runs, func() {
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Status", "Provider", "Model", "Ideas", "Topic", "Created"})
			for _, r := range runs {
				tw.AppendRow(table.Row{r.ID, r.Status, r.Provider, r.Model, r.IdeaCount, truncate(r.TopicFocus, 30), formatTime(r.CreatedAt)})
			}
			tw.Render()
		})
	},
}

var runShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its ideas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "run id")
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return showRun(context.Background(), a, id)
	},
}

type runDetail struct {
	Run   types.Run    `json:"run" yaml:"run"`
	Ideas []types.Idea `json:"ideas" yaml:"ideas"`
}

func showRun(ctx context.Context, a *app, id int64) error {
	run, err := a.store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	ideas, err := a.store.ListIdeas(ctx, id)
	if err != nil {
		return err
	}
	return printResult(runDetail{Run: run, Ideas: ideas}, func() {
		fmt.Printf("Run %d: %s (%s/%s, %d idea(s))\n", run.ID, run.Status, run.Provider, run.Model, run.IdeaCount)
		if run.Log != "" {
			fmt.Printf("Log: %s\n", run.Log)
		}
		renderIdeas(ideas)
	})
}

func init() {
	runStartCmd.Flags().String("provider", "openai", "generation provider: openai, anthropic or gemini")
	runStartCmd.Flags().String("model", "", "provider model (default: the provider's default model)")
	runStartCmd.Flags().Int("count", 1, "number of ideas to generate (1-20)")
	runStartCmd.Flags().String("topic", "", "topic focus injected into every prompt")
	runStartCmd.Flags().Int64("literature-query", 0, "literature query whose assessment is injected into prompts")
	runStartCmd.Flags().Bool("seeds", false, "seed ideas from the assessment's idea prompts")

	runListCmd.Flags().Int("limit", 5, "maximum number of runs (0 = all)")

	runCmd.AddCommand(runStartCmd)
	runCmd.AddCommand(runListCmd)
	runCmd.AddCommand(runShowCmd)
	rootCmd.AddCommand(runCmd)
}
