// Package main provides the entry point for the snabel CLI.
//
// snabel drives agent-based migrations of existing code into a target
// micro-frontend: it creates sessions, uploads archives, starts and stops the
// agent, streams its logs and merges the resulting branch.
package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/config"
	"github.com/snabel/cli/internal/ui"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// annotationCreatesConfig marks commands that may run before an explicit
// --config file exists.
const annotationCreatesConfig = "snabel/creates-config"

var (
	// v holds the resolved configuration sources for this process.
	v = viper.New()

	// cfgFile is the --config flag value.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "snabel",
	Short:         "Agent-driven micro-frontend migrations",
	Long:          ui.GetCondensedHelp(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		if debug {
			log.SetLevel(log.DebugLevel)
			log.Debug("Debug logging enabled")
		}

		// Set quiet mode from global flag
		quiet, _ := cmd.Flags().GetBool("quiet")
		ui.SetQuietMode(quiet)

		api.UserAgent = "snabel-cli/" + version

		if cfgFile != "" && cmd.Annotations[annotationCreatesConfig] == "true" {
			if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
				config.InitEnv(v)
				return config.BindFlags(v, cmd.Flags())
			}
		}
		if err := config.Init(v, cfgFile); err != nil {
			return err
		}
		return config.BindFlags(v, cmd.Flags())
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
//
// Unknown commands typed in the wrong order (e.g. "snabel merge session")
// get a "did you mean" suggestion.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		ui.PrintError("%v", err)

		errStr := err.Error()
		if start := strings.Index(errStr, `unknown command "`); start != -1 {
			start += len(`unknown command "`)
			if end := strings.Index(errStr[start:], `"`); end != -1 {
				unknownCmd := errStr[start : start+end]
				if suggestion, found := suggestCorrectCommand(unknownCmd, os.Args[1:], rootCmd); found {
					printCommandSuggestion(suggestion)
				}
			}
		}
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.config/snabel/config.yaml)")
	rootCmd.PersistentFlags().String("base-url", "", "Backend base URL (overrides config and SNABEL_BASE_URL)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON (where supported)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "Confirm destructive actions without prompting")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(mfesCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(resetFrontendCmd)
	rootCmd.AddCommand(configCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		baseURL := config.DefaultBaseURL
		if cfg, err := config.FromViper(v); err == nil {
			baseURL = cfg.BaseURL
		}
		ui.PrintBanner(version, baseURL)
		ui.PrintInfo("Version: %s", version)
		ui.PrintInfo("Commit: %s", commit)
		ui.PrintInfo("Built: %s", date)
	},
}

func main() {
	Execute()
}
