package cli

import (
	"os"

	"github.com/spetersoncode/kigen/internal/config"
	kerrors "github.com/spetersoncode/kigen/internal/errors"
	"github.com/spetersoncode/kigen/internal/store"
	"github.com/spf13/cobra"
)

var (
	initForce      bool
	initWithConfig bool
)

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing store (and config with --with-config)")
	initCmd.Flags().BoolVar(&initWithConfig, "with-config", false, "Also write a sample config file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the local store",
	Long: `Create the ~/.kigen/ directory and the local store.

This command:
- Creates ~/.kigen/ if it doesn't exist
- Creates kigen.db and applies the schema
- With --with-config, writes a commented sample config.toml

Use --force to replace an existing store. All stored values are lost.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

type initResult struct {
	Database string `json:"database"`
	Created  bool   `json:"created"`
	Schema   int64  `json:"schema_version"`
	Config   string `json:"config,omitempty"`
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetDBPath()

	if store.Exists(path) && !initForce {
		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), initResult{Database: displayDBPath(), Created: false})
		}
		return kerrors.General("store already exists at %s", displayDBPath()).
			WithSuggestion("Use --force to replace it.")
	}

	if initForce && store.Exists(path) {
		VerboseOutput(cmd, "Removing existing store...\n")
		if err := store.Delete(path); err != nil {
			return kerrors.WrapStorage(err, "failed to remove existing store")
		}
	}

	VerboseOutput(cmd, "Creating store...\n")
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	version, err := s.MigrationStatus()
	if err != nil {
		return kerrors.WrapStorage(err, "failed to read schema version")
	}

	result := initResult{Database: s.Path(), Created: true, Schema: version}

	if initWithConfig {
		cfgPath := os.Getenv("KIGEN_CONFIG")
		if cfgPath == "" {
			cfgPath = config.DefaultConfigPath()
		}
		if _, err := os.Stat(cfgPath); err == nil && !initForce {
			ErrorOutput(cmd, "Config already exists at %s, leaving it unchanged\n", cfgPath)
		} else {
			VerboseOutput(cmd, "Writing sample config...\n")
			if err := config.WriteConfigFile(cfgPath); err != nil {
				return kerrors.Wrap(err, kerrors.KindGeneral, "failed to write config file")
			}
			result.Config = cfgPath
		}
	}

	if IsJSON() {
		return outputJSON(cmd.OutOrStdout(), result)
	}

	OutputLine(cmd, "Initialized kigen store at %s", result.Database)
	OutputLine(cmd, "Schema version: %d", result.Schema)
	if result.Config != "" {
		OutputLine(cmd, "Wrote sample config to %s", result.Config)
	}
	return nil
}
