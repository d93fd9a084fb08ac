package cmd

import (
	"fmt"
	"os"

	"github.com/relgate/relgate/cmd/lock"
	"github.com/relgate/relgate/cmd/manifest"
	"github.com/relgate/relgate/cmd/perf"
	"github.com/relgate/relgate/cmd/publish"
	"github.com/spf13/cobra"
)

const (
	Version = "0.6.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "relgate",
		Short: "release publication gate",
		Long: fmt.Sprintf(`relgate (v%s)

A release publication coordinator that serializes concurrent publishers
through a shared-filesystem lock and updates release manifests atomically,
with backup, rollback and remote sync.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of relgate",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("relgate v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(publish.PublishCmd)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(manifest.ManifestCommands)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
