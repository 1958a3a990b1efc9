package main

import (
	"github.com/spf13/cobra"
	"github.com/zentity/zk-attest/cmd/zkproof"
)

// Init the cmd
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zkattest",
		Short: "Zero-Knowledge attestation service",
		Long:  `Issues single-use proof challenges, verifies zero-knowledge proofs against them and signs attestation tokens`,
	}

	rootCmd.AddCommand(
		zkproof.NewServeCmd(),
		zkproof.NewCompileCmd(),
		NewVersionCmd(),
	)

	return rootCmd
}
