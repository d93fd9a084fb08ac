package perf

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/relgate/relgate/cmd/util"
	"github.com/relgate/relgate/common"
	"github.com/relgate/relgate/lib/coordinator"
	"github.com/relgate/relgate/lib/manifest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// PerfCmd represents the perf command
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Benchmark concurrent release publication",
		Long: util.WrapString("Run concurrent publish cycles (acquire, merge, write, release) " +
			"against a temporary workspace and report throughput and latency percentiles. " +
			"Everything runs locally; no remote is involved."),
		PreRunE: processPerfConfig,
		RunE:    run,
	}
	perfPublishers = 4
	perfUpdates    = 50
	perfResources  = 1
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the shared coordinator flags
	util.SetupCoordinatorFlags(PerfCmd)

	// add flags
	key := "publishers"
	PerfCmd.Flags().Int(key, 4, util.WrapString("Number of concurrent publishers"))
	key = "updates"
	PerfCmd.Flags().Int(key, 50, util.WrapString("Publishes per publisher"))
	key = "resources"
	PerfCmd.Flags().Int(key, 1, util.WrapString("Number of distinct resources to spread the publishers over"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "show-metrics"
	PerfCmd.Flags().Bool(key, false, util.WrapString("Print the internal metrics in Prometheus text format after the run"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfPublishers = viper.GetInt("publishers")
	perfUpdates = viper.GetInt("updates")
	perfResources = viper.GetInt("resources")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Benchmark for concurrent release publication")

	// benchmark workspace, removed afterwards
	base, err := os.MkdirTemp("", "relgate-perf-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(base)

	conf := util.GetCoordinatorConfig("perf")
	conf.WorkDir = filepath.Join(base, "work")
	conf.LockDir = filepath.Join(base, "locks")
	common.InitLoggers(*conf)

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Publishers: %d, updates each: %d, resources: %d\n", perfPublishers, perfUpdates, perfResources)
	fmt.Println()

	fmt.Println("starting benchmark...")

	locks := util.GetLockManager(conf)
	store := util.GetManifestStore(conf, nil)

	registry := gometrics.NewRegistry()
	timer := gometrics.GetOrRegisterTimer("publish", registry)

	resources := make([]string, perfResources)
	for i := range resources {
		resources[i] = fmt.Sprintf("perf-%d", i)
	}

	var failures atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < perfPublishers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			// each publisher runs its own coordinator, like separate processes would
			c := coordinator.New(*conf, locks, store)

			for n := 0; n < perfUpdates; n++ {
				resource := resources[(id+n)%len(resources)]
				rec := manifest.Record{
					"version": fmt.Sprintf("0.0.%d", n),
					"channel": fmt.Sprintf("publisher-%d", id),
				}
				timer.Time(func() {
					if err := c.Publish(resource, rec); err != nil {
						failures.Add(1)
					}
				})
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	printResults(timer, elapsed, failures.Load())

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, timer, elapsed, failures.Load()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if viper.GetBool("show-metrics") {
		fmt.Println()
		vmetrics.WritePrometheus(os.Stdout, false)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printResults prints the benchmark results in a formatted way
func printResults(timer gometrics.Timer, elapsed time.Duration, failures int64) {
	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})

	fmt.Println()
	fmt.Printf("%-14s%d\n", "publishes", timer.Count())
	fmt.Printf("%-14s%d\n", "failures", failures)
	fmt.Printf("%-14s%s\n", "elapsed", elapsed.Round(time.Millisecond))
	fmt.Printf("%-14s%.1f ops/sec\n", "throughput", float64(timer.Count())/elapsed.Seconds())
	fmt.Printf("%-14s%s\n", "mean", time.Duration(timer.Mean()).Round(time.Microsecond))
	fmt.Printf("%-14s%s\n", "p50", time.Duration(ps[0]).Round(time.Microsecond))
	fmt.Printf("%-14s%s\n", "p95", time.Duration(ps[1]).Round(time.Microsecond))
	fmt.Printf("%-14s%s\n", "p99", time.Duration(ps[2]).Round(time.Microsecond))
}

// writeResultsToCSV writes the benchmark results to a CSV file
func writeResultsToCSV(csvPath string, timer gometrics.Timer, elapsed time.Duration, failures int64) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Publishes", "Failures", "Elapsed", "OpsPerSec",
		"MeanNs", "P50Ns", "P95Ns", "P99Ns",
		"Publishers", "Updates", "Resources",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
	row := []string{
		strconv.FormatInt(timer.Count(), 10),
		strconv.FormatInt(failures, 10),
		elapsed.String(),
		fmt.Sprintf("%.1f", float64(timer.Count())/elapsed.Seconds()),
		fmt.Sprintf("%.0f", timer.Mean()),
		fmt.Sprintf("%.0f", ps[0]),
		fmt.Sprintf("%.0f", ps[1]),
		fmt.Sprintf("%.0f", ps[2]),
		strconv.Itoa(perfPublishers),
		strconv.Itoa(perfUpdates),
		strconv.Itoa(perfResources),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %v", err)
	}

	return nil
}
