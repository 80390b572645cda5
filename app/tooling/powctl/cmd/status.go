package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusURL string

type status struct {
	Height       uint64 `json:"block_number"`
	PreviousHash string `json:"previous_hash"`
	Difficulty   uint   `json:"difficulty"`
	Workers      int    `json:"workers"`
	Accepted     uint64 `json:"accepted"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the chain head of a running coordinator",
	RunE:  statusRun,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusURL, "url", "u", "http://localhost:8080", "Url of the coordinator.")
}

func statusRun(cmd *cobra.Command, args []string) error {
	client := http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(fmt.Sprintf("%s/v1/status", statusURL))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coordinator returned %s", resp.Status)
	}

	var st status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Height:     %d\n", st.Height)
	fmt.Fprintf(out, "Head:       %s\n", st.PreviousHash)
	fmt.Fprintf(out, "Difficulty: %d\n", st.Difficulty)
	fmt.Fprintf(out, "Workers:    %d\n", st.Workers)
	fmt.Fprintf(out, "Accepted:   %d\n", st.Accepted)

	return nil
}
