package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
	"github.com/spf13/cobra"
)

var verifyDifficulty uint

var verifyCmd = &cobra.Command{
	Use:   "verify [block json]",
	Short: "Check a block's hash and difficulty, reading stdin when no block is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().UintVarP(&verifyDifficulty, "difficulty", "d", 16, "Number of leading zero bits required.")
}

func verifyRun(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		r = strings.NewReader(args[0])
	}

	var blk block.Block
	if err := json.NewDecoder(r).Decode(&blk); err != nil {
		return fmt.Errorf("decoding block: %w", err)
	}

	if err := blk.Validate(verifyDifficulty); err != nil {
		return fmt.Errorf("block %d is invalid: %w", blk.Number, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Block %d is valid: hash %s has %d leading zero bits\n", blk.Number, blk.BlockHash, block.LeadingZeroBits(blk.BlockHash))
	return nil
}
