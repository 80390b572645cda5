package coordinator

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// DefaultTxPerBlock is the number of transactions generated for each task.
const DefaultTxPerBlock = 5

// GenerateTransactions returns n random transfer records of the form
// "TX_<id>: SENDER -> RECEIVER [amount units]". The records are opaque to
// the pool and only feed the merkle root of the task.
func GenerateTransactions(n int) []string {
	txs := make([]string, n)
	for i := range txs {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		txs[i] = fmt.Sprintf("TX_%s: %s -> %s [%d units]", id, randomName(8), randomName(8), rand.Intn(1000)+1)
	}

	return txs
}

func randomName(n int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}

	return string(b)
}
