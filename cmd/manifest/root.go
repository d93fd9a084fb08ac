package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/relgate/relgate/cmd/util"
	"github.com/relgate/relgate/common"
	libmanifest "github.com/relgate/relgate/lib/manifest"
	"github.com/spf13/cobra"
)

var (
	store libmanifest.IManifestStore

	// ManifestCommands represents the manifest command group
	ManifestCommands = &cobra.Command{
		Use:               "manifest",
		Short:             "Inspect local manifest working copies",
		PersistentPreRunE: setupStore,
	}

	// showCmd represents the show command
	showCmd = &cobra.Command{
		Use:   "show [resource]",
		Short: "Print the local manifest working copy",
		Long: util.WrapString("Print the local working copy of a resource's manifest. This is a " +
			"speculative read without locking; the content may be outdated the moment it is printed."),
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}

	// pathCmd represents the path command
	pathCmd = &cobra.Command{
		Use:   "path [resource]",
		Short: "Print the path of the local manifest working copy",
		Args:  cobra.ExactArgs(1),
		RunE:  runPath,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands to manifest command
	ManifestCommands.AddCommand(showCmd)
	ManifestCommands.AddCommand(pathCmd)

	// Add the shared coordinator flags to the manifest command
	util.SetupCoordinatorFlags(ManifestCommands)
}

// setupStore initializes a local-only manifest store; diagnostics never
// talk to the remote side
func setupStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf := util.GetCoordinatorConfig("")
	common.InitLoggers(*conf)
	store = util.GetManifestStore(conf, nil)

	return nil
}

// runShow handles the show command
func runShow(_ *cobra.Command, args []string) error {
	resource := args[0]

	doc, err := store.Load(resource)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no local manifest for %q (expected at %s)", resource, store.LocalPath(resource))
	}
	if err != nil {
		return err
	}

	data, err := doc.Encode()
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	return nil
}

// runPath handles the path command
func runPath(_ *cobra.Command, args []string) error {
	fmt.Println(store.LocalPath(args[0]))
	return nil
}
