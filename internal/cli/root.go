package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spetersoncode/kigen/internal/backup"
	"github.com/spetersoncode/kigen/internal/config"
	kerrors "github.com/spetersoncode/kigen/internal/errors"
	"github.com/spetersoncode/kigen/internal/logger"
	"github.com/spetersoncode/kigen/internal/store"
	"github.com/spetersoncode/kigen/internal/timefmt"
	"github.com/spf13/cobra"
)

// Version information (set at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global flags
var (
	dbPath   string
	jsonOut  bool
	quiet    bool
	verbose  bool
	noColor  bool
	locale   string
	nowFlag  string
	timezone string
)

// Global configuration (loaded once at startup)
var globalConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "kigen",
	Short: "Expiry timestamps, tokens and a local key-value store",
	Long: `Kigen turns expiry timestamps into short human-readable differences
such as "2時間30分後" or "有効期限切れ", and bundles the small tools that
usually travel with them: JWT encode/decode, a local key-value store,
random IDs, hashes and clipboard copy.

Use "kigen diff <timestamp>" to format a Unix timestamp.
Use "kigen --help" to see all available commands.`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		level := cfg.LogLevel
		if verbose {
			level = "DEBUG"
		}
		logger.Init(level)

		if IsNoColor() {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	var err error
	globalConfig, err = config.Load()
	if err != nil {
		// If config file is invalid, print warning but continue with defaults
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		globalConfig = config.DefaultConfig()
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to store file (default ~/.kigen/kigen.db)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "", "Label language for differences: ja or en")
	rootCmd.PersistentFlags().StringVar(&nowFlag, "now", "", "Treat this Unix timestamp as the current time")
	rootCmd.PersistentFlags().StringVar(&timezone, "tz", "", "Timezone for absolute timestamps (IANA name)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("kigen %s (%s, %s)\n", Version, shortCommit(), shortDate()))

	rootCmd.AddCommand(versionCmd)
}

// shortCommit returns the first 7 characters of the git commit hash
func shortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

// shortDate returns just the date portion of BuildDate (YYYY-MM-DD)
func shortDate() string {
	if len(BuildDate) >= 10 {
		return BuildDate[:10]
	}
	return BuildDate
}

// Execute runs the root command, cancelling its context on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig != nil {
		return globalConfig
	}
	return config.DefaultConfig()
}

// GetDBPath returns the store path from flags, config, or default.
// Priority: flag > env > config file > default
func GetDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return GetConfig().GetDB()
}

// displayDBPath is GetDBPath with the default filled in.
func displayDBPath() string {
	if p := GetDBPath(); p != "" {
		return p
	}
	return store.DefaultPath
}

// IsJSON returns whether JSON output is requested
func IsJSON() bool {
	return jsonOut
}

// IsNoColor returns whether colored output should be disabled.
// Priority: flag > env > config file > default
func IsNoColor() bool {
	return noColor || GetConfig().NoColor
}

// IsQuiet returns whether quiet mode is enabled
func IsQuiet() bool {
	return quiet
}

// Labels returns the label table from --locale or config.
func Labels() (timefmt.Labels, error) {
	if locale != "" {
		if !timefmt.IsSupportedLocale(locale) {
			return timefmt.Labels{}, kerrors.InvalidArgs("unsupported locale %q", locale).
				WithSuggestion("Use --locale ja or --locale en.")
		}
		return timefmt.LabelsFor(locale), nil
	}
	return GetConfig().Labels(), nil
}

// Location returns the timezone from --tz or config.
func Location() (*time.Location, error) {
	name := timezone
	if name == "" {
		name = GetConfig().Timezone
	}
	loc, err := timefmt.LoadLocation(name)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.KindInvalidArgs, "invalid timezone")
	}
	return loc, nil
}

// Clock returns a fixed clock when --now is set, otherwise the system clock.
func Clock() (timefmt.Clock, error) {
	if nowFlag == "" {
		return timefmt.SystemClock{}, nil
	}
	ts, err := parseTimestamp(nowFlag)
	if err != nil {
		return nil, err
	}
	return timefmt.FixedUnix(ts), nil
}

// Formatter builds the difference formatter from the global flags and config.
func Formatter() (*timefmt.Formatter, error) {
	clock, err := Clock()
	if err != nil {
		return nil, err
	}
	labels, err := Labels()
	if err != nil {
		return nil, err
	}
	return timefmt.New(timefmt.WithClock(clock), timefmt.WithLabels(labels)), nil
}

// maxTimestamp bounds accepted timestamps to about 31 million years either
// side of the epoch, far from int64 overflow when two are subtracted.
const maxTimestamp int64 = 1e15

// parseTimestamp accepts whole Unix seconds or an RFC 3339 time.
func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		t, perr := time.Parse(time.RFC3339, s)
		if perr != nil {
			return 0, kerrors.InvalidArgs("invalid timestamp %q", s).
				WithSuggestion("Pass whole seconds since the Unix epoch (e.g. 1700000000) or an RFC 3339 time.")
		}
		ts = t.Unix()
	}
	if ts > maxTimestamp || ts < -maxTimestamp {
		return 0, kerrors.InvalidArgs("timestamp %d out of range (±%d)", ts, maxTimestamp)
	}
	return ts, nil
}

// openStore opens and migrates the store at the configured path, taking an
// automatic snapshot first when one is due.
func openStore() (*store.Store, error) {
	s, err := store.OpenAndMigrate(GetDBPath())
	if err != nil {
		return nil, kerrors.WrapStorage(err, "failed to open store at %s", displayDBPath())
	}

	if cfg := GetConfig().Backup; cfg.Enabled {
		if path, err := backup.NewManager(s, cfg).SnapshotIfDue(context.Background()); err != nil {
			logger.Warn("automatic snapshot failed", "error", err)
		} else if path != "" {
			logger.Debug("automatic snapshot taken", "path", path)
		}
	}
	return s, nil
}

// Output prints to the command's stdout unless quiet mode is enabled
func Output(cmd *cobra.Command, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

// OutputLine prints a line to the command's stdout unless quiet mode is enabled
func OutputLine(cmd *cobra.Command, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	}
}

// VerboseOutput prints only in verbose mode
func VerboseOutput(cmd *cobra.Command, format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

// ErrorOutput prints to the command's stderr
func ErrorOutput(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format, args...)
}

// Result prints the primary result of a command. Unlike Output it is not
// silenced by --quiet, so scripts can always capture it.
func Result(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
