package cli

import (
	"strconv"
	"time"

	kerrors "github.com/spetersoncode/kigen/internal/errors"
	"github.com/spetersoncode/kigen/internal/timefmt"
	"github.com/spf13/cobra"
)

func init() {
	tsCmd.AddCommand(tsNowCmd)
	tsCmd.AddCommand(tsInCmd)
	tsCmd.AddCommand(tsFormatCmd)
	tsCmd.AddCommand(tsDateCmd)
	rootCmd.AddCommand(tsCmd)
}

var tsCmd = &cobra.Command{
	Use:   "ts",
	Short: "Unix timestamp helpers",
	Long: `Print and format Unix timestamps (whole seconds).

Examples:
  kigen ts now
  kigen ts in 3600                   # an hour from now
  kigen ts format 1704067200 --tz Asia/Tokyo
  kigen ts date 1704067200`,
}

var tsNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Print the current Unix timestamp",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		clock, err := Clock()
		if err != nil {
			return err
		}
		return printTimestamp(cmd, timefmt.CurrentTimestamp(clock))
	},
}

var tsInCmd = &cobra.Command{
	Use:   "in <seconds>",
	Short: "Print the Unix timestamp a number of seconds from now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return kerrors.InvalidArgs("invalid number of seconds %q", args[0])
		}
		clock, err := Clock()
		if err != nil {
			return err
		}
		return printTimestamp(cmd, timefmt.FutureTimestamp(clock, seconds))
	},
}

var tsFormatCmd = &cobra.Command{
	Use:   "format <timestamp>",
	Short: "Print a timestamp as YYYY/MM/DD hh:mm:ss",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := parseTimestamp(args[0])
		if err != nil {
			return err
		}
		loc, err := Location()
		if err != nil {
			return err
		}
		text := timefmt.FormatTimestamp(ts, loc)
		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), map[string]any{"timestamp": ts, "formatted": text})
		}
		Result(cmd, "%s", text)
		return nil
	},
}

var tsDateCmd = &cobra.Command{
	Use:   "date <timestamp>",
	Short: "Print the calendar date of a timestamp (2024年1月1日)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := parseTimestamp(args[0])
		if err != nil {
			return err
		}
		loc, err := Location()
		if err != nil {
			return err
		}
		text := timefmt.FormatDate(time.Unix(ts, 0).In(loc))
		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), map[string]any{"timestamp": ts, "date": text})
		}
		Result(cmd, "%s", text)
		return nil
	},
}

func printTimestamp(cmd *cobra.Command, ts int64) error {
	if IsJSON() {
		return outputJSON(cmd.OutOrStdout(), map[string]any{"timestamp": ts})
	}
	Result(cmd, "%d", ts)
	return nil
}
