package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func Test_Merkle(t *testing.T) {
	out, err := execute(t, "", "merkle", "a")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the root: %s", failed, err)
	}

	exp := "0x251a262291b87cb3c93a6ed71865da1f2c090c3d0196661a8f4a705b65836f71"
	if !strings.Contains(out, exp) {
		t.Fatalf("\t%s\tShould print the root of a single transaction paired with itself: %s", failed, out)
	}
	t.Logf("\t%s\tShould print the root of a single transaction paired with itself.", success)
}

func Test_MineAndVerify(t *testing.T) {
	t.Log("Given the need to mine a block locally and verify it.")
	{
		out, err := execute(t, "", "mine", "--difficulty", "8", "--number", "1", "--timestamp", "1700000000", "a", "b")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine the block: %s", failed, err)
		}

		if !strings.Contains(out, `"nonce": 303`) || !strings.Contains(out, "0x0015a90be3b035bd2af44fcfe8c2030e53b3e21fac38064417930ba41915a34e") {
			t.Fatalf("\t%s\tShould find the known solution: %s", failed, out)
		}
		t.Logf("\t%s\tShould find the known solution.", success)

		blk := out[:strings.Index(out, "Attempts:")]

		out, err = execute(t, blk, "verify", "--difficulty", "8")
		if err != nil {
			t.Fatalf("\t%s\tShould verify the mined block: %s", failed, err)
		}
		if !strings.Contains(out, "is valid") {
			t.Fatalf("\t%s\tShould report the block as valid: %s", failed, out)
		}
		t.Logf("\t%s\tShould verify the mined block.", success)

		if _, err := execute(t, blk, "verify", "--difficulty", "12"); err == nil {
			t.Fatalf("\t%s\tShould reject the block at a higher difficulty.", failed)
		}
		t.Logf("\t%s\tShould reject the block at a higher difficulty.", success)

		tampered := strings.Replace(blk, `"nonce": 303`, `"nonce": 304`, 1)
		if _, err := execute(t, tampered, "verify", "--difficulty", "8"); err == nil {
			t.Fatalf("\t%s\tShould reject a block whose hash does not match.", failed)
		}
		t.Logf("\t%s\tShould reject a block whose hash does not match.", success)
	}
}

func Test_Launch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := launch(ctx, zap.NewNop().Sugar(), 8, 3, 3, "127.0.0.1:0"); err != nil {
		t.Fatalf("\t%s\tShould run the pool until three blocks are mined: %s", failed, err)
	}

	if ctx.Err() != nil {
		t.Fatalf("\t%s\tShould finish before the deadline.", failed)
	}
	t.Logf("\t%s\tShould run the pool until three blocks are mined.", success)
}
