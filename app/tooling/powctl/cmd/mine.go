package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
	"github.com/ardanlabs/powpool/foundation/blockchain/pow"
	"github.com/spf13/cobra"
)

var (
	mineDifficulty uint
	mineNumber     uint64
	minePrevHash   string
	mineTimestamp  uint64
	mineTimeout    time.Duration
)

var mineCmd = &cobra.Command{
	Use:   "mine [transactions...]",
	Short: "Mine a block locally and print it",
	RunE:  mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().UintVarP(&mineDifficulty, "difficulty", "d", 16, "Number of leading zero bits required.")
	mineCmd.Flags().Uint64VarP(&mineNumber, "number", "n", 0, "Height of the block.")
	mineCmd.Flags().StringVarP(&minePrevHash, "prev", "p", block.ZeroHash.String(), "Hash of the previous block.")
	mineCmd.Flags().Uint64VarP(&mineTimestamp, "timestamp", "t", 0, "Timestamp of the block, zero uses the current time.")
	mineCmd.Flags().DurationVar(&mineTimeout, "timeout", 0, "Give up after this long, zero never gives up.")
}

func mineRun(cmd *cobra.Command, args []string) error {
	var prev block.Hash
	if err := prev.UnmarshalText([]byte(minePrevHash)); err != nil {
		return fmt.Errorf("parsing previous hash: %w", err)
	}

	task := block.Task{
		Transactions: args,
		PreviousHash: prev,
		Number:       mineNumber,
		Difficulty:   mineDifficulty,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mineTimeout)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	ev := func(v string, args ...any) {
		fmt.Fprintf(cmd.ErrOrStderr(), v+"\n", args...)
	}

	var result pow.Result
	switch mineTimestamp {
	case 0:
		result = pow.Search(ctx, task, pow.WithEvents(ev))
	default:
		result = pow.SearchHeader(ctx, task.Header(mineTimestamp), task.Difficulty, pow.WithEvents(ev))
	}

	switch r := result.(type) {
	case pow.Cancelled:
		return fmt.Errorf("search cancelled after %d attempts in %v", r.Attempts, r.Elapsed)

	case pow.Found:
		data, err := json.MarshalIndent(r.Block, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(out, string(data))
		fmt.Fprintf(out, "Attempts: %d\n", r.Attempts)
		fmt.Fprintf(out, "Elapsed:  %v\n", r.Elapsed)
		fmt.Fprintf(out, "Rate:     %.0f H/s\n", pow.HashRate(r.Attempts, r.Elapsed))
	}

	return nil
}
