package cmd

import (
	"fmt"

	"github.com/ardanlabs/powpool/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var proofFor string

var merkleCmd = &cobra.Command{
	Use:   "merkle [transactions...]",
	Short: "Print the merkle root of a set of transactions",
	RunE:  merkleRun,
}

func init() {
	rootCmd.AddCommand(merkleCmd)
	merkleCmd.Flags().StringVarP(&proofFor, "proof", "p", "", "Transaction to print the inclusion proof for.")
}

func merkleRun(cmd *cobra.Command, args []string) error {
	txs := make([]merkle.Transaction, len(args))
	for i, arg := range args {
		txs[i] = merkle.Transaction(arg)
	}

	tree, err := merkle.NewTree(txs)
	if err != nil {
		return fmt.Errorf("building tree: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Transactions: %d\n", len(args))
	fmt.Fprintf(out, "Merkle Root:  %s\n", tree.RootHex())

	if proofFor == "" {
		return nil
	}

	proof, order, err := tree.Proof(merkle.Transaction(proofFor))
	if err != nil {
		return fmt.Errorf("building proof: %w", err)
	}

	fmt.Fprintf(out, "Proof for %q:\n", proofFor)
	for i := range proof {
		side := "right"
		if order[i] == 0 {
			side = "left"
		}
		fmt.Fprintf(out, "  %d: %s %s\n", i, side, hexutil.Encode(proof[i]))
	}

	return nil
}
