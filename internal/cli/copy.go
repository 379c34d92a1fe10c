package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/spetersoncode/kigen/internal/clipboard"
	kerrors "github.com/spetersoncode/kigen/internal/errors"
	"github.com/spf13/cobra"
)

// clipboardWriter is replaced in tests.
var clipboardWriter clipboard.Writer = clipboard.System{}

func init() {
	rootCmd.AddCommand(copyCmd)
}

var copyCmd = &cobra.Command{
	Use:   "copy [text|-]",
	Short: "Copy text to the clipboard",
	Long: `Copy the text argument, or stdin when it is omitted or "-", to the
system clipboard. On Linux this needs xclip, xsel or wl-copy.

Examples:
  kigen copy "hello"
  kigen token encode --key secret | kigen copy`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) == 0 || args[0] == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return kerrors.Wrap(err, kerrors.KindInvalidArgs, "failed to read stdin")
			}
			text = strings.TrimRight(string(data), "\r\n")
		} else {
			text = args[0]
		}

		if !copyText(text) {
			return kerrors.Unavailable("could not copy to the clipboard").
				WithSuggestion("Install xclip, xsel or wl-clipboard, or check the clipboard is reachable.")
		}

		if IsJSON() {
			return outputJSON(cmd.OutOrStdout(), map[string]any{"copied": true, "length": len([]rune(text))})
		}
		OutputLine(cmd, "Copied %d characters", len([]rune(text)))
		return nil
	},
}

func copyText(text string) bool {
	return clipboard.Copy(clipboardWriter, text)
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, kerrors.InvalidArgs("expected a positive number, got %q", s)
	}
	return n, nil
}
