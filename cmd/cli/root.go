package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	gitlabToken string
	gitlabURL   string
)

var rootCmd = &cobra.Command{
	Use:   "reviewer-cli",
	Short: "reviewer-cli runs AI reviews of GitLab merge requests from the terminal.",
	Long:  `A CLI for the GitLab review service: run one-shot merge request reviews, compare branches and inspect the supported review types without starting the HTTP server.`,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&gitlabToken, "gitlab-token", "t", "", "GitLab access token")
	rootCmd.PersistentFlags().StringVarP(&gitlabURL, "gitlab-url", "u", "", "GitLab base URL (defaults to DEFAULT_GITLAB_URL)")

	if err := viper.BindPFlag("GITLAB_TOKEN", rootCmd.PersistentFlags().Lookup("gitlab-token")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("DEFAULT_GITLAB_URL", rootCmd.PersistentFlags().Lookup("gitlab-url")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
}

// initConfig reads ENV variables so flags can fall back to them.
func initConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
