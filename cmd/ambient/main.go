package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/ambient/internal/config"
	"github.com/bft-labs/ambient/pkg/log"
)

const helpDescription = `
Run the modules of an ambient information display: clocks, calendars,
weather, news, compliments and alerts.

Every module fetches on its own schedule, keeps its last good data when a
source fails, and rotates through what it has. Configure modules in
$HOME/.ambient/config.toml (or .yaml); settings can be overridden with
AMBIENT_* environment variables and flags.
`

var exampleUsage = strings.TrimSpace(`
  ambient --config $HOME/.ambient/config.toml
  ambient validate --config ./config.yaml
  ambient snapshot --wait 10s
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds the values shared by every command.
type cli struct {
	cfg     config.Config
	cfgPath string
}

func main() {
	c := &cli{cfg: config.DefaultConfig()}
	logger := log.NewZerolog(os.Stderr)

	root := &cobra.Command{
		Use:           "ambient",
		Short:         "Run the modules of an ambient information display",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.ambient/config.toml)")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (trace, debug, info, warn, error)")
	flags.StringVar(&c.cfg.Units, "units", c.cfg.Units, "units for weather modules (metric, imperial, standard)")
	flags.StringVar(&c.cfg.Language, "language", c.cfg.Language, "language passed to weather providers")
	flags.StringVar(&c.cfg.Locale, "locale", c.cfg.Locale, "locale used for dates")
	flags.StringVar(&c.cfg.Timezone, "timezone", c.cfg.Timezone, "IANA time zone (default: host zone)")
	flags.IntVar(&c.cfg.TimeFormat, "time-format", c.cfg.TimeFormat, "clock format, 12 or 24")
	flags.DurationVar(&c.cfg.FetchTimeoutCap, "fetch-timeout", c.cfg.FetchTimeoutCap, "upper bound of every module fetch")
	flags.DurationVar(&c.cfg.HTTPTimeout, "http-timeout", c.cfg.HTTPTimeout, "HTTP client timeout")
	flags.StringVar(&c.cfg.LockFile, "lock-file", c.cfg.LockFile, "lock file preventing a second daemon (optional)")

	root.AddCommand(c.modulesCommand(), c.validateCommand(), c.snapshotCommand())

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("ambient")
		os.Exit(1)
	}
}

// changedFlags returns the names of flags set on the command line.
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}

// loader builds a loader that resolves the configuration from the file,
// the environment and the flags of cmd.
func (c *cli) loader(cmd *cobra.Command) *fileLoader {
	path := c.cfgPath
	explicit := path != ""
	if !explicit {
		path = config.DefaultConfigPath()
	}
	return &fileLoader{
		base:     c.cfg,
		path:     path,
		explicit: explicit,
		changed:  changedFlags(cmd),
	}
}
