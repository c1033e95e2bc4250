package cmd

import (
	"os"

	"chatwidget-cli/cmd/utils"

	"github.com/spf13/cobra"
)

var debug bool
var serverURL string
var overrideCwd string
var configPath string

var rootCmd = &cobra.Command{
	Use:   "cw",
	Short: "cw - a minimal chat widget for your terminal",
	Long: `cw is a small chat client: type a message, it is posted to a chat
endpoint, and the reply shows up in the transcript. Failed requests are retried
in the background with exponential backoff.

Getting started:
  # Run a local echo endpoint
  cw serve

  # Open the chat window
  cw

  # Send a one-time message
  cw chat "Hello there"`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runChatSessionTUI()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flags are parsed at this point; honor --cwd and --debug
		utils.OverrideCwd = overrideCwd
		if debug {
			if err := utils.InitDebugLogger(debugLogPath(), true); err != nil {
				OutputWarning("failed to open debug log: %v", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		utils.CloseDebugLogger()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if code := execute(os.Args[1:]); code != 0 {
		os.Exit(code)
	}
}

// execute runs the command tree and reports a RunE error through the output
// manager, returning the process exit code.
func execute(args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		OutputError("Error: %v", err)
		return 1
	}
	return 0
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server-url", "", "Chat server URL (default: http://127.0.0.1:5000)")
	rootCmd.PersistentFlags().StringVar(&overrideCwd, "cwd", "", "Override the current working directory for CLI operations")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a chatwidget config file (default: chatwidget.yaml in the working directory)")
}

// debugLogPath honours CW_LOG_FILE and log_file before falling back to
// debug.log in the working directory. Config errors are reported later by
// the command itself.
func debugLogPath() string {
	if p := os.Getenv("CW_LOG_FILE"); p != "" {
		return p
	}
	if ctx, err := resolveSessionContext(); err == nil && ctx.Config.LogFile != "" {
		return ctx.Config.LogFile
	}
	return ""
}
