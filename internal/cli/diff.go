package cli

import (
	"github.com/fatih/color"
	"github.com/spetersoncode/kigen/internal/timefmt"
	"github.com/spf13/cobra"
)

var diffPast bool

func init() {
	diffCmd.Flags().BoolVar(&diffPast, "past", false, "Show elapsed time instead of the expired label")
	rootCmd.AddCommand(diffCmd)
}

var diffCmd = &cobra.Command{
	Use:   "diff <timestamp>",
	Short: "Show the time until or since a timestamp",
	Long: `Format the difference between a Unix timestamp (seconds) and now.

Future timestamps show at most two adjacent units ("2時間30分後").
Past timestamps show "有効期限切れ" unless --past is given, in which case
the elapsed time is shown ("1分40秒前").

Examples:
  kigen diff 1700000000
  kigen diff 1700000000 --past
  kigen diff 1700000090 --now 1700000000        # 1分30秒後
  kigen diff 2024-01-01T00:00:00Z --locale en`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

// Difference states, used for JSON output and coloring.
const (
	stateLater   = "later"
	stateNow     = "now"
	stateExpired = "expired"
	stateAgo     = "ago"
)

type diffResult struct {
	Timestamp int64  `json:"timestamp"`
	Now       int64  `json:"now"`
	Diff      int64  `json:"diff"`
	State     string `json:"state"`
	Text      string `json:"text"`
}

func diffState(diff int64, past bool) string {
	switch {
	case diff > 0:
		return stateLater
	case diff == 0:
		return stateNow
	case past:
		return stateAgo
	default:
		return stateExpired
	}
}

// colorize picks a color per state; fatih/color strips it when disabled.
func colorize(state, text string) string {
	switch state {
	case stateExpired:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case stateNow:
		return color.New(color.FgYellow).Sprint(text)
	case stateLater:
		return color.New(color.FgGreen).Sprint(text)
	default:
		return color.New(color.Faint).Sprint(text)
	}
}

func runDiff(cmd *cobra.Command, args []string) error {
	ts, err := parseTimestamp(args[0])
	if err != nil {
		return err
	}

	f, err := Formatter()
	if err != nil {
		return err
	}

	now := f.Now()
	result := diffResult{
		Timestamp: ts,
		Now:       now,
		Diff:      timefmt.Diff(ts, now),
		State:     diffState(timefmt.Diff(ts, now), diffPast),
		Text:      timefmt.DifferenceAt(ts, now, diffPast, f.Labels()),
	}

	if IsJSON() {
		return outputJSON(cmd.OutOrStdout(), result)
	}

	Result(cmd, "%s", colorize(result.State, result.Text))
	return nil
}
