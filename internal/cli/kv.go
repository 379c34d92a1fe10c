package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spetersoncode/kigen/internal/backup"
	kerrors "github.com/spetersoncode/kigen/internal/errors"
	"github.com/spetersoncode/kigen/internal/store"
	"github.com/spf13/cobra"
)

var (
	storeGetDefault string
	storeListPrefix string
	storeSetString  bool
)

func init() {
	storeSetCmd.Flags().BoolVarP(&storeSetString, "string", "s", false, "Store the value as a string even if it is valid JSON")
	storeGetCmd.Flags().StringVarP(&storeGetDefault, "default", "d", "", "Print this instead of failing when the key is missing")
	storeListCmd.Flags().StringVarP(&storeListPrefix, "prefix", "p", "", "Only list keys starting with this prefix")

	storeCmd.AddCommand(storeSetCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storeRmCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeBackupCmd)
	storeCmd.AddCommand(storeBackupsCmd)
	rootCmd.AddCommand(storeCmd)
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Local key-value store",
	Long: `Save and load JSON values in the local store.

Values that parse as JSON are stored as-is; anything else is stored as a
JSON string.

Examples:
  kigen store set session eyJhbGciOi...
  kigen store set prefs '{"theme":"dark"}'
  kigen store get prefs
  kigen store list --prefix sess
  kigen store rm session`,
}

var storeSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Save a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if !storeSetString && json.Valid([]byte(value)) {
			err = s.SaveRaw(cmd.Context(), key, value)
		} else {
			err = s.Save(cmd.Context(), key, value)
		}
		if err != nil {
			return storeError(err, key)
		}

		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), map[string]any{"key": key, "saved": true})
		}
		OutputLine(cmd, "Saved %s", key)
		return nil
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored value",
	Long: `Print the value stored under a key.

String values are printed without quotes; other values are printed as JSON.
With --default, a missing key prints the default instead of failing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		entry, err := s.Get(cmd.Context(), key)
		if err != nil {
			if cmd.Flags().Changed("default") && errors.Is(err, store.ErrNotFound) {
				Result(cmd, "%s", storeGetDefault)
				return nil
			}
			return storeError(err, key)
		}

		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), entry)
		}
		Result(cmd, "%s", displayValue(entry.Value))
		return nil
	},
}

var storeRmCmd = &cobra.Command{
	Use:     "rm <key>",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove a stored value",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Remove(cmd.Context(), key); err != nil {
			return storeError(err, key)
		}
		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), map[string]any{"key": key, "removed": true})
		}
		OutputLine(cmd, "Removed %s", key)
		return nil
	},
}

type listedEntry struct {
	store.Entry
	Age string `json:"age"`
}

var storeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored keys",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		entries, err := s.List(cmd.Context(), storeListPrefix)
		if err != nil {
			return kerrors.WrapStorage(err, "failed to list keys")
		}

		f, err := Formatter()
		if err != nil {
			return err
		}

		listed := make([]listedEntry, 0, len(entries))
		for _, e := range entries {
			listed = append(listed, listedEntry{Entry: e, Age: f.Difference(e.UpdatedAt.Unix(), true)})
		}

		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), listed)
		}

		if len(listed) == 0 {
			OutputLine(cmd, "No stored keys.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s %s\n", column("KEY", 24), column("VALUE", 40), "UPDATED")
		fmt.Fprintln(w, strings.Repeat("-", 78))
		for _, e := range listed {
			fmt.Fprintf(w, "%s %s %s\n",
				column(e.Key, 24),
				column(displayValue(e.Value), 40),
				e.Age,
			)
		}
		return nil
	},
}

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.Clear(cmd.Context())
		if err != nil {
			return kerrors.WrapStorage(err, "failed to clear store")
		}
		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), map[string]any{"removed": n})
		}
		OutputLine(cmd, "Removed %d keys", n)
		return nil
	},
}

var storeBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a snapshot of the store now",
	Long: `Write a consistent snapshot of the store, rotating older ones.

Snapshots are kept next to the store (or in backup.path) as kigen.db.bak.N,
newest first. Automatic snapshots are enabled with backup.enabled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		path, err := backup.NewManager(s, GetConfig().Backup).Snapshot(cmd.Context())
		if err != nil {
			return kerrors.WrapStorage(err, "failed to snapshot store")
		}
		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), map[string]any{"path": path})
		}
		Result(cmd, "%s", path)
		return nil
	},
}

type listedSnapshot struct {
	backup.Snapshot
	Age string `json:"age"`
}

var storeBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List store snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		m := backup.NewManager(s, GetConfig().Backup)
		snaps, err := m.List()
		if err != nil {
			return kerrors.WrapStorage(err, "failed to list snapshots")
		}

		f, err := Formatter()
		if err != nil {
			return err
		}
		listed := make([]listedSnapshot, 0, len(snaps))
		for _, snap := range snaps {
			listed = append(listed, listedSnapshot{Snapshot: snap, Age: f.Difference(snap.ModTime.Unix(), true)})
		}

		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), listed)
		}
		if len(listed) == 0 {
			OutputLine(cmd, "No snapshots in %s.", m.Dir())
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Snapshots in %s\n\n", m.Dir())
		fmt.Fprintf(w, "%-4s %s %s\n", "N", column("TAKEN", 20), "PATH")
		fmt.Fprintln(w, strings.Repeat("-", 70))
		for _, snap := range listed {
			fmt.Fprintf(w, "%-4d %s %s\n", snap.Number, column(snap.Age, 20), snap.Path)
		}
		return nil
	},
}

// displayValue unquotes JSON strings and returns other documents unchanged.
func displayValue(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return raw
}

// truncate shortens s to maxLen terminal cells, marking the cut with "...".
// Wide characters such as kanji count as two cells.
func truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		return runewidth.Truncate(s, maxLen, "")
	}
	return runewidth.Truncate(s, maxLen, "...")
}

// column truncates s and pads it to exactly width cells.
func column(s string, width int) string {
	return runewidth.FillRight(truncate(s, width), width)
}
