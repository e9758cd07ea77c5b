package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the jam application
var rootCmd = &cobra.Command{
	Use:   "jam",
	Short: "Keeps job application records in step with your Gmail inbox",
	Long: `jam watches a connected Gmail account for job application emails,
classifies them with an LLM and reconciles the result into a local
application tracker: new applications are imported and existing ones
advance through the status pipeline as acknowledgements, interview
invitations, offers and rejections arrive.

It can run as:
  - A long-running service with an HTTP API (serve)
  - A one-shot sync for scripting and debugging (sync)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "jam version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newVersionCmd())
}
