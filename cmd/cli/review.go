package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/wire"
)

var (
	flagProjectID    string
	flagMRID         int
	flagReviewType   string
	flagModel        string
	flagMode         string
	flagSourceBranch string
	flagTargetBranch string
	flagComment      bool
	verbose          bool
)

// Color definitions
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

var severityColors = map[core.Severity]*color.Color{
	core.SeverityCritical: color.New(color.FgRed, color.Bold),
	core.SeverityHigh:     errorColor,
	core.SeverityMedium:   warnColor,
	core.SeverityLow:      color.New(color.FgBlue),
	core.SeverityInfo:     dimColor,
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run an AI review of a GitLab merge request",
	Long: `Run an AI review of a GitLab merge request and print the findings.

Examples:
  reviewer-cli review --project group/repo --mr 123
  reviewer-cli review --project group/repo --mr 123 --type security --comment
  reviewer-cli review --project group/repo --mode branch_compare --source feature/x --target main`,
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	reviewCmd.Flags().StringVarP(&flagProjectID, "project", "p", "", "Project ID or path (group/repo)")
	reviewCmd.Flags().IntVarP(&flagMRID, "mr", "m", 0, "Merge request IID")
	reviewCmd.Flags().StringVar(&flagReviewType, "type", "full", "Review type: full, security, performance or quick")
	reviewCmd.Flags().StringVar(&flagModel, "model", "", "Override the configured AI model")
	reviewCmd.Flags().StringVar(&flagMode, "mode", "", "Review mode: mr (default) or branch_compare")
	reviewCmd.Flags().StringVar(&flagSourceBranch, "source", "", "Source branch (branch_compare mode)")
	reviewCmd.Flags().StringVar(&flagTargetBranch, "target", "", "Target branch (branch_compare mode)")
	reviewCmd.Flags().BoolVar(&flagComment, "comment", false, "Post the result as a comment on the merge request")
	reviewCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output with timing information")
	_ = reviewCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	start := time.Now()

	titleColor.Println("GitLab Code Reviewer")
	dimColor.Printf("   Project: %s, MR: !%d\n\n", flagProjectID, flagMRID)

	rt, err := core.ParseReviewType(flagReviewType)
	if err != nil {
		return err
	}

	pipeline, cleanup, err := wire.InitializeReviewer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize reviewer: %w\n\nTip: Check that OPENAI_API_KEY is set", err)
	}
	defer cleanup()

	req := &core.ReviewRequest{
		Ref: core.MergeRequestRef{
			BaseURL:   viper.GetString("DEFAULT_GITLAB_URL"),
			ProjectID: flagProjectID,
			MRIID:     flagMRID,
			Token:     viper.GetString("GITLAB_TOKEN"),
		},
		Mode:         core.ReviewMode(flagMode),
		Type:         rt,
		SourceBranch: flagSourceBranch,
		TargetBranch: flagTargetBranch,
		Model:        flagModel,
	}

	fmt.Println("Reviewing...")
	var result *core.ReviewResult
	if flagComment {
		result, err = pipeline.ReviewAndComment(ctx, req)
	} else {
		result, err = pipeline.Review(ctx, req)
	}
	if err != nil {
		errorColor.Printf("Review failed: %v\n", err)
		return err
	}

	printResult(result)

	if verbose {
		dimColor.Printf("\nTook %s, model %s, %d prompt units, ~%d tokens\n",
			time.Since(start).Round(time.Millisecond), result.Model,
			result.Stats.PromptUnits, result.Stats.TokensEstimate)
	}
	if flagComment {
		successColor.Println("\nResult posted to the merge request.")
	}
	return nil
}

func printResult(result *core.ReviewResult) {
	scoreColor := successColor
	switch {
	case result.Score < 4:
		scoreColor = errorColor
	case result.Score < 7:
		scoreColor = warnColor
	}

	fmt.Println()
	scoreColor.Printf("Score: %.1f/10.0", result.Score)
	dimColor.Printf("   (%s review, %d files", result.Type, result.Stats.FilesAnalyzed)
	if result.FromCache {
		dimColor.Print(", cached")
	}
	dimColor.Println(")")

	if result.Summary != "" {
		fmt.Println(renderMarkdown(result.Summary))
	}

	if len(result.Findings) > 0 {
		titleColor.Printf("Findings (%d):\n", len(result.Findings))
		for _, f := range result.Findings {
			c, ok := severityColors[f.Severity]
			if !ok {
				c = dimColor
			}
			c.Printf("  [%s] ", f.Severity)
			fmt.Printf("%s:%d (%s): %s\n", f.File, f.Line, f.Category, f.Message)
			if f.Suggestion != "" {
				dimColor.Printf("        %s\n", f.Suggestion)
			}
		}
	}

	if len(result.Suggestions) > 0 {
		titleColor.Println("\nSuggestions:")
		for _, s := range result.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
}

// renderMarkdown pretty-prints the summary; on any renderer trouble the raw
// text is good enough.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
