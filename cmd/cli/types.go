package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the supported review types",
	Run: func(_ *cobra.Command, _ []string) {
		for _, rt := range core.ReviewTypes() {
			titleColor.Printf("%-12s", rt)
			fmt.Println(rt.Description())
		}
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(typesCmd)
}
