package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultLockTimeoutSecond bounds how long a publish waits for the lock
	DefaultLockTimeoutSecond = 300

	// DefaultStaleAfterSecond is the marker age after which a lock counts as abandoned
	DefaultStaleAfterSecond = 600

	// DefaultPollIntervalMS is the pause between acquisition attempts
	DefaultPollIntervalMS = 1000

	DefaultRemoteTimeoutSecond = 30
	DefaultRemoteRetryCount    = 3
)

// DefaultMergeKeyFields identifies a release entry within the manifest
var DefaultMergeKeyFields = []string{"version", "channel"}

// --------------------------------------------------------------------------
// Resource names
// --------------------------------------------------------------------------

// resource names become part of lock marker and manifest file names, so they
// must stay a single path component
var resourceNameRe = regexp.MustCompile(`^[a-zA-Z0-9][\w.-]*$`)

// ValidateResource checks that a resource name is safe to embed in a
// lock marker or manifest file name
func ValidateResource(name string) error {
	if name == "" {
		return fmt.Errorf("resource name must not be empty")
	}
	if !resourceNameRe.MatchString(name) {
		return fmt.Errorf("invalid resource name %q: must match %s", name, resourceNameRe.String())
	}
	return nil
}

// --------------------------------------------------------------------------
// Remote configuration struct
// --------------------------------------------------------------------------

// RemoteConfig describes where the authoritative manifest lives. An empty
// Endpoint means local-only operation: no download, no upload.
type RemoteConfig struct {
	// http(s) URL or a filesystem path reachable from this host
	Endpoint string

	TimeoutSecond int
	RetryCount    int
}

// --------------------------------------------------------------------------
// Coordinator configuration struct
// --------------------------------------------------------------------------

// CoordinatorConfig holds all parameters for a publish run.
type CoordinatorConfig struct {
	// Resource is the manifest identity being published to, e.g. "linux" or "macos-arm64"
	Resource string

	// WorkDir is the local directory holding manifest and backup files
	WorkDir string

	// LockDir is the directory lock markers are created in
	LockDir string

	// lock parameters
	LockTimeoutSecond int
	StaleAfterSecond  int
	PollIntervalMS    int

	// MergeKeyFields are the record fields that identify a release entry
	// when merging into the manifest
	MergeKeyFields []string

	Remote RemoteConfig

	// Logging configuration
	LogLevel string

	// optional push target for internal metrics
	MetricsPushURL string
}

func (c *CoordinatorConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSecond) * time.Second
}

func (c *CoordinatorConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSecond) * time.Second
}

func (c *CoordinatorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// LocalOnly reports whether no remote endpoint is configured
func (c *CoordinatorConfig) LocalOnly() bool {
	return c.Remote.Endpoint == ""
}

// Validate fails fast on unusable configuration. It is called before any
// lock is touched so a mistyped invocation never leaves markers behind.
func (c *CoordinatorConfig) Validate() error {
	if err := ValidateResource(c.Resource); err != nil {
		return err
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work directory must not be empty")
	}
	if c.LockDir == "" {
		return fmt.Errorf("lock directory must not be empty")
	}
	if c.LockTimeoutSecond <= 0 {
		return fmt.Errorf("lock timeout must be positive, got %d", c.LockTimeoutSecond)
	}
	if c.StaleAfterSecond <= 0 {
		return fmt.Errorf("stale-after must be positive, got %d", c.StaleAfterSecond)
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll interval must be positive, got %d", c.PollIntervalMS)
	}
	if len(c.MergeKeyFields) == 0 {
		return fmt.Errorf("merge key fields must not be empty")
	}
	if !c.LocalOnly() {
		if c.Remote.TimeoutSecond <= 0 {
			return fmt.Errorf("remote timeout must be positive, got %d", c.Remote.TimeoutSecond)
		}
		if c.Remote.RetryCount <= 0 {
			return fmt.Errorf("remote retry count must be positive, got %d", c.Remote.RetryCount)
		}
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *CoordinatorConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Publish target
	addSection("Publish Target")
	addField("Resource", c.Resource)
	addField("Work Directory", c.WorkDir)
	addField("Merge Key", strings.Join(c.MergeKeyFields, "+"))

	// Lock settings
	addSection("Lock")
	addField("Lock Directory", c.LockDir)
	addField("Timeout", fmt.Sprintf("%d sec", c.LockTimeoutSecond))
	addField("Stale After", fmt.Sprintf("%d sec", c.StaleAfterSecond))
	addField("Poll Interval", fmt.Sprintf("%d ms", c.PollIntervalMS))

	// Remote settings
	addSection("Remote")
	if c.LocalOnly() {
		addField("Mode", "local only")
	} else {
		addField("Endpoint", c.Remote.Endpoint)
		addField("Timeout", fmt.Sprintf("%d sec", c.Remote.TimeoutSecond))
		addField("Retry Count", strconv.Itoa(c.Remote.RetryCount))
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	if c.MetricsPushURL != "" {
		addField("Metrics Push URL", c.MetricsPushURL)
	}

	return sb.String()
}
