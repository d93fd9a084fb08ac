package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/relgate/relgate/cmd/util"
	"github.com/relgate/relgate/common"
	"github.com/relgate/relgate/lib/coordinator"
	"github.com/relgate/relgate/lib/manifest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = common.GetLogger("cmd")

var (
	publishConfig *common.CoordinatorConfig

	// PublishCmd represents the publish command
	PublishCmd = &cobra.Command{
		Use:   "publish",
		Short: "Publish a release record to the shared manifest",
		Long: util.WrapString("Acquire the release lock for a resource, merge the release record " +
			"into its manifest, write the manifest atomically and sync it to the configured " +
			"remote. The exit code tells the failure category apart: 0 success, 1 configuration, " +
			"2 lock timeout, 3 lock lost, 4 merge rejected, 5 sync failed."),
		PreRunE:      processConfig,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := runPublish(); err != nil {
				fmt.Fprintf(os.Stderr, "publish failed: %v\n", err)
				os.Exit(coordinator.ExitCode(err))
			}
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the shared coordinator flags
	util.SetupCoordinatorFlags(PublishCmd)

	// Add flags specific to publish
	key := "resource"
	PublishCmd.Flags().String(key, "", util.WrapString("Resource whose manifest is published to, e.g. linux or macos-arm64"))

	key = "version"
	PublishCmd.Flags().String(key, "", util.WrapString("Version of the release record"))

	key = "channel"
	PublishCmd.Flags().String(key, "stable", util.WrapString("Channel of the release record"))

	key = "archive"
	PublishCmd.Flags().String(key, "", util.WrapString("Archive file name or URL of the release record"))

	key = "sha256"
	PublishCmd.Flags().String(key, "", util.WrapString("Checksum of the release archive"))

	key = "record-json"
	PublishCmd.Flags().String(key, "", util.WrapString("The whole release record as a JSON object. Replaces the individual record flags"))

	key = "verbose"
	PublishCmd.Flags().Bool(key, false, util.WrapString("Print the effective configuration and the publish progress"))
}

// processConfig reads the publish configuration from flags and environment
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	publishConfig = util.GetCoordinatorConfig(viper.GetString("resource"))
	common.InitLoggers(*publishConfig)

	return nil
}

// buildRecord assembles the release record from the command line flags
func buildRecord() (manifest.Record, error) {
	if raw := viper.GetString("record-json"); raw != "" {
		rec := manifest.Record{}
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("invalid record JSON: %v", err)
		}
		return rec, nil
	}

	if viper.GetString("version") == "" {
		return nil, fmt.Errorf("either --version or --record-json is required")
	}

	rec := manifest.Record{
		"version":      viper.GetString("version"),
		"channel":      viper.GetString("channel"),
		"published_at": time.Now().UTC().Format(time.RFC3339),
	}
	if v := viper.GetString("archive"); v != "" {
		rec["archive"] = v
	}
	if v := viper.GetString("sha256"); v != "" {
		rec["sha256"] = v
	}
	return rec, nil
}

// startMetricsPush starts the background push of the internal metrics.
// An empty push target is a no-op.
func startMetricsPush(pushURL string) error {
	if pushURL == "" {
		return nil
	}
	return metrics.InitPush(pushURL, 10*time.Second, `job="relgate"`, false)
}

// runPublish wires the coordinator and runs the publish sequence
func runPublish() error {
	if viper.GetBool("verbose") {
		fmt.Println(publishConfig.String())
	}

	rec, err := buildRecord()
	if err != nil {
		return err
	}

	rs, err := util.GetRemote(publishConfig)
	if err != nil {
		return err
	}
	if rs != nil {
		defer rs.Close()
	}

	locks := util.GetLockManager(publishConfig)
	store := util.GetManifestStore(publishConfig, rs)

	// start pushing metrics if a push target is configured
	if err := startMetricsPush(publishConfig.MetricsPushURL); err != nil {
		Logger.Warningf("failed to start metrics push to %s: %v", publishConfig.MetricsPushURL, err)
	}

	// an interrupted publisher must not leave a live marker behind
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		Logger.Warningf("received %v, releasing held locks", sig)
		locks.ReleaseAll()
		os.Exit(130)
	}()

	c := coordinator.New(*publishConfig, locks, store)
	if viper.GetBool("verbose") {
		c.OnTransition = func(s coordinator.State) {
			fmt.Printf("  -> %s\n", s)
		}
	}

	if err := c.Publish(publishConfig.Resource, rec); err != nil {
		return err
	}

	fmt.Printf("published resource=%s manifest=%s\n", publishConfig.Resource, store.LocalPath(publishConfig.Resource))
	return nil
}
