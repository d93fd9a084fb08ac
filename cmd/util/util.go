package util

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/relgate/relgate/common"
	"github.com/relgate/relgate/lib/lock"
	"github.com/relgate/relgate/lib/manifest"
	"github.com/relgate/relgate/remote"
	"github.com/relgate/relgate/remote/fs"
	"github.com/relgate/relgate/remote/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupCoordinatorFlags adds the shared publish configuration flags to a command
func SetupCoordinatorFlags(cmd *cobra.Command) {
	key := "work-dir"
	cmd.PersistentFlags().String(key, "data", WrapString("Directory for the local manifest working copies and backups"))

	key = "lock-dir"
	cmd.PersistentFlags().String(key, "", WrapString("Directory lock markers are created in. Must be on the shared filesystem all publishers see. Defaults to the system temp directory"))

	key = "lock-timeout"
	cmd.PersistentFlags().Int(key, common.DefaultLockTimeoutSecond, WrapString("How long to wait for the release lock (in seconds)"))

	key = "stale-after"
	cmd.PersistentFlags().Int(key, common.DefaultStaleAfterSecond, WrapString("Marker age after which a lock counts as abandoned and may be reclaimed (in seconds)"))

	key = "poll-interval"
	cmd.PersistentFlags().Int(key, common.DefaultPollIntervalMS, WrapString("Pause between lock acquisition attempts (in milliseconds)"))

	key = "merge-key"
	cmd.PersistentFlags().String(key, strings.Join(common.DefaultMergeKeyFields, ","), WrapString("Comma-separated record fields that identify a release entry when merging"))

	key = "remote"
	cmd.PersistentFlags().String(key, "", WrapString("Remote manifest endpoint. Either an http(s) URL or a directory path (e.g. a mounted bucket). Empty means local-only operation"))

	key = "remote-prefix"
	cmd.PersistentFlags().String(key, "", WrapString("Path prefix for manifest objects on the remote side"))

	key = "remote-timeout"
	cmd.PersistentFlags().Int(key, common.DefaultRemoteTimeoutSecond, WrapString("Timeout for a single remote request (in seconds)"))

	key = "remote-retries"
	cmd.PersistentFlags().Int(key, common.DefaultRemoteRetryCount, WrapString("How many times to retry a remote request"))

	key = "metrics-push-url"
	cmd.PersistentFlags().String(key, "", WrapString("Optional URL to push internal metrics to"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("relgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetCoordinatorConfig reads the publish configuration from viper
func GetCoordinatorConfig(resource string) *common.CoordinatorConfig {
	conf := &common.CoordinatorConfig{
		Resource:          resource,
		WorkDir:           viper.GetString("work-dir"),
		LockDir:           viper.GetString("lock-dir"),
		LockTimeoutSecond: viper.GetInt("lock-timeout"),
		StaleAfterSecond:  viper.GetInt("stale-after"),
		PollIntervalMS:    viper.GetInt("poll-interval"),
		MergeKeyFields:    SplitFields(viper.GetString("merge-key")),
		Remote: common.RemoteConfig{
			Endpoint:      viper.GetString("remote"),
			TimeoutSecond: viper.GetInt("remote-timeout"),
			RetryCount:    viper.GetInt("remote-retries"),
		},
		LogLevel:       viper.GetString("log-level"),
		MetricsPushURL: viper.GetString("metrics-push-url"),
	}

	// the lock directory has no meaningful static default
	if conf.LockDir == "" {
		conf.LockDir = os.TempDir()
	}

	return conf
}

// SplitFields splits a comma-separated flag value into its fields
func SplitFields(s string) []string {
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// GetLockManager creates the lock manager from configuration
func GetLockManager(conf *common.CoordinatorConfig) lock.ILockManager {
	return lock.NewLockManager(lock.Config{
		Dir:          conf.LockDir,
		PollInterval: conf.PollInterval(),
		StaleAfter:   conf.StaleAfter(),
	})
}

// GetManifestStore creates the manifest store from configuration. A nil
// remote means local-only operation.
func GetManifestStore(conf *common.CoordinatorConfig, rs remote.IRemoteSync) manifest.IManifestStore {
	return manifest.NewStore(manifest.Config{
		WorkDir:      conf.WorkDir,
		RemotePrefix: viper.GetString("remote-prefix"),
	}, rs)
}

// GetRemote creates and connects the remote implementation matching the
// configured endpoint. Both return values are nil for local-only operation.
func GetRemote(conf *common.CoordinatorConfig) (remote.IRemoteSync, error) {
	if conf.LocalOnly() {
		return nil, nil
	}

	var rs remote.IRemoteSync
	u, err := url.Parse(conf.Remote.Endpoint)
	switch {
	case err == nil && (u.Scheme == "http" || u.Scheme == "https"):
		rs = http.NewHTTPRemote()
	case err == nil && u.Scheme != "":
		return nil, fmt.Errorf("unsupported remote scheme %q in %s: expected an http(s) URL or a directory path",
			u.Scheme, conf.Remote.Endpoint)
	default:
		// anything without a scheme is a directory path
		rs = fs.NewFSRemote()
	}

	if err := rs.Connect(conf.Remote); err != nil {
		return nil, fmt.Errorf("failed to connect to remote %s: %v", conf.Remote.Endpoint, err)
	}
	return rs, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
