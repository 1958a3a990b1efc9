package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// zkattest - challenge issuance, proof verification and signed attestations
// for the identity pipeline
func main() {
	// flag defaults read the environment, so .env has to be loaded first
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
