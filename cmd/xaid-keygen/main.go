// Command xaid-keygen generates a new XAI keypair and prints its WIF
// private key and derived address, grounded on cmd/txsigner's flat
// generate-then-print CLI shape.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xai-network/xaid/crypto"
)

func main() {
	testnet := flag.Bool("testnet", false, "derive a testnet address instead of mainnet")
	flag.Parse()

	network := crypto.Mainnet
	if *testnet {
		network = crypto.Testnet
	}

	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		printErrorAndExit(err, "failed to generate private key")
	}

	address := crypto.DeriveAddress(priv.PublicKey(), network)
	wif := crypto.EncodeWIF(priv)

	fmt.Printf("Address:     %s\n", address)
	fmt.Printf("Private key: %s\n", wif)
}

func printErrorAndExit(err error, message string) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", message, err)
	os.Exit(1)
}
