package cli

import (
	kerrors "github.com/spetersoncode/kigen/internal/errors"
	"github.com/spetersoncode/kigen/internal/idgen"
	"github.com/spf13/cobra"
)

var (
	idLength int
	idCount  int
	idUUID   bool
	idCopy   bool
)

func init() {
	idCmd.Flags().IntVarP(&idLength, "length", "l", idgen.DefaultLength, "Number of characters")
	idCmd.Flags().IntVarP(&idCount, "count", "n", 1, "Number of IDs to print")
	idCmd.Flags().BoolVar(&idUUID, "uuid", false, "Print a random (v4) UUID instead")
	idCmd.Flags().BoolVar(&idCopy, "copy", false, "Copy the last ID to the clipboard")
	rootCmd.AddCommand(idCmd)
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Generate random identifiers",
	Long: `Generate random alphanumeric identifiers (A-Z, a-z, 0-9).

Examples:
  kigen id                 # 8 characters
  kigen id -l 16 -n 3
  kigen id --uuid --copy`,
	Args: cobra.NoArgs,
	RunE: runID,
}

func runID(cmd *cobra.Command, args []string) error {
	if idCount < 1 {
		return kerrors.InvalidArgs("count must be at least 1, got %d", idCount)
	}

	ids := make([]string, 0, idCount)
	for i := 0; i < idCount; i++ {
		if idUUID {
			ids = append(ids, idgen.UUID())
			continue
		}
		id, err := idgen.Generate(idLength)
		if err != nil {
			return kerrors.Wrap(err, kerrors.KindGeneral, "failed to generate id")
		}
		ids = append(ids, id)
	}

	if idCopy && !copyText(ids[len(ids)-1]) {
		ErrorOutput(cmd, "Warning: could not copy to the clipboard\n")
	}

	if IsJSON() {
		return outputJSON(cmd.OutOrStdout(), ids)
	}
	for _, id := range ids {
		Result(cmd, "%s", id)
	}
	return nil
}
