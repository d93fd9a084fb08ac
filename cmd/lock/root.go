package lock

import (
	"fmt"
	"time"

	"github.com/relgate/relgate/cmd/util"
	"github.com/relgate/relgate/common"
	liblock "github.com/relgate/relgate/lib/lock"
	"github.com/spf13/cobra"
)

var (
	manager       liblock.ILockManager
	lockConfig    *common.CoordinatorConfig
	releaseHolder string

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Inspect and manage release locks",
		PersistentPreRunE: setupLockManager,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [resource]",
		Short: "Acquire the release lock for a resource",
		Long: util.WrapString("Acquire the release lock for a resource and print the holder ID. " +
			"The lock marker survives this process; release it with the lock release command."),
		Args: cobra.ExactArgs(1),
		RunE: runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [resource]",
		Short: "Release a previously acquired release lock",
		Long:  util.WrapString("Release a lock using the resource name and the holder ID printed by the acquire command."),
		Args:  cobra.ExactArgs(1),
		RunE:  runRelease,
	}

	// statusCmd represents the status command
	statusCmd = &cobra.Command{
		Use:   "status [resource]",
		Short: "Show who holds the release lock for a resource",
		Long: util.WrapString("Show the holder, age and staleness verdict of a lock marker " +
			"without touching it. The answer may be outdated the moment it is printed."),
		Args: cobra.ExactArgs(1),
		RunE: runStatus,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)
	LockCommands.AddCommand(statusCmd)

	// Add the shared coordinator flags to the lock command
	util.SetupCoordinatorFlags(LockCommands)

	// Add flags specific to release
	releaseCmd.Flags().StringVar(&releaseHolder, "holder", "", util.WrapString("Holder ID printed by the acquire command"))
	_ = releaseCmd.MarkFlagRequired("holder")
}

// setupLockManager initializes the lock manager from configuration
func setupLockManager(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	lockConfig = util.GetCoordinatorConfig("")
	common.InitLoggers(*lockConfig)
	manager = util.GetLockManager(lockConfig)

	return nil
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	resource := args[0]

	h, err := manager.Acquire(resource, lockConfig.LockTimeout())
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}

	fmt.Printf("resource=%s, acquired=true, holder=%s\n", h.Resource(), h.HolderID())

	return nil
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	resource := args[0]

	// Recreate the handle so the lock of another process can be released
	h := liblock.NewHandle(resource, releaseHolder)

	if err := manager.Release(h); err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Println("released=true")

	return nil
}

// runStatus handles the status command
func runStatus(_ *cobra.Command, args []string) error {
	resource := args[0]

	meta, held, err := manager.Inspect(resource)
	if err != nil {
		return fmt.Errorf("failed to inspect lock: %v", err)
	}

	if !held {
		fmt.Printf("resource=%s, locked=false\n", resource)
		return nil
	}

	if meta == nil {
		fmt.Printf("resource=%s, locked=true, holder=unknown (unreadable metadata)\n", resource)
		return nil
	}

	age := meta.Age().Round(time.Second)
	stale := meta.Age() > lockConfig.StaleAfter()
	fmt.Printf("resource=%s, locked=true, holder=%s, age=%s, stale=%v\n", resource, meta.HolderID, age, stale)

	return nil
}
