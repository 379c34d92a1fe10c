package cli

import (
	"fmt"
	"runtime"

	"github.com/spetersoncode/kigen/internal/clipboard"
	"github.com/spetersoncode/kigen/internal/store"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the version of kigen, build date, Go version, store and clipboard status.`,
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

type versionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Store     string `json:"store,omitempty"`
	Schema    int64  `json:"schema_version,omitempty"`
	Clipboard bool   `json:"clipboard"`
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := versionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Clipboard: clipboard.Available(),
	}

	// Open without migrating so version never changes the store.
	path := GetDBPath()
	if store.Exists(path) {
		info.Store = displayDBPath()
		if s, err := store.Open(path); err == nil {
			defer s.Close()
			if version, err := s.MigrationStatus(); err == nil {
				info.Schema = version
			}
		}
	}

	if IsJSON() {
		return outputJSON(cmd.OutOrStdout(), info)
	}

	w := cmd.OutOrStdout()
	// Compact format matching --version: kigen v0.1.0 (9f61316, 2026-02-02)
	fmt.Fprintf(w, "kigen %s (%s, %s)\n", info.Version, shortCommit(), shortDate())
	fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform: %s\n", info.Platform)

	if info.Store != "" {
		fmt.Fprintf(w, "Store: %s (schema v%d)\n", info.Store, info.Schema)
	} else {
		fmt.Fprintln(w, "Store: not initialized (run 'kigen init')")
	}
	if info.Clipboard {
		fmt.Fprintln(w, "Clipboard: available")
	} else {
		fmt.Fprintln(w, "Clipboard: unavailable")
	}
	return nil
}
