package zkproof

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/zentity/zk-attest/circuitspec"
	"github.com/zentity/zk-attest/server/api"
)

type compileConfig struct {
	outputDir string
	circuits  []string
	curve     string
	force     bool
}

func NewCompileCmd() *cobra.Command {
	cfg := &compileConfig{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile circuits and generate setup files",
		Long:  `Compile zero-knowledge circuits and generate constraint systems, proving keys, and verification keys. Circuits proved outside this service (nationality_membership) are skipped; drop their verifying key into the output directory instead.`,
		Example: `  # Compile all circuits
  zkattest compile -o ./setup

  # Compile specific circuits
  zkattest compile -o ./setup -c age_verification,face_match
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.outputDir, "output", "o", "./setup", "Output directory for compiled circuits")
	cmd.Flags().StringSliceVarP(&cfg.circuits, "circuits", "c", []string{}, "Specific circuit types to compile (comma-separated, empty = all)")
	cmd.Flags().StringVar(&cfg.curve, "curve", "bn254", "Elliptic curve (bn254)")
	cmd.Flags().BoolVarP(&cfg.force, "force", "f", false, "Overwrite existing files")

	return cmd
}

func runCompile(cfg *compileConfig) error {
	if cfg.curve != "bn254" {
		return fmt.Errorf("unsupported curve: %s", cfg.curve)
	}

	// Create output directory
	if err := os.MkdirAll(cfg.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	toCompile := make([]circuitspec.Type, 0, len(cfg.circuits))
	for _, name := range cfg.circuits {
		ct, err := circuitspec.ParseType(name)
		if err != nil {
			return err
		}
		toCompile = append(toCompile, ct)
	}
	if len(toCompile) == 0 {
		for ct := range api.CircuitList {
			toCompile = append(toCompile, ct)
		}
		sort.Slice(toCompile, func(i, j int) bool { return toCompile[i] < toCompile[j] })
	}

	fmt.Printf("\n==== Compiling %d circuits to %s ====\n", len(toCompile), cfg.outputDir)

	failed := 0
	for _, ct := range toCompile {
		info := api.CircuitList[ct]
		// set the output dir
		info.Dir = cfg.outputDir

		if !cfg.force && setupExists(info) {
			fmt.Printf("%s already exists, skipping (use --force to overwrite)\n", ct)
			continue
		}

		start := time.Now()
		fmt.Printf("Compiling %s...\n", ct)

		// compile the circuit
		err := info.Compile()
		if errors.Is(err, api.ErrExternalCircuit) {
			fmt.Printf("[-] %s is proved externally, skipping\n", ct)
			continue
		}
		if err != nil {
			fmt.Printf("[X] Failed to compile %s: %v\n", ct, err)
			failed++
			continue
		}

		fmt.Printf("[OK] Compiled %s in %s\n", ct, time.Since(start).Round(time.Millisecond))
	}

	fmt.Println("\n==== Compilation complete ====")
	if failed > 0 {
		return fmt.Errorf("%d circuits failed to compile", failed)
	}
	return nil
}

func setupExists(info api.CircuitInfo) bool {
	ccsPath, pkPath, vkPath := info.Paths()
	for _, p := range []string{ccsPath, pkPath, vkPath} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}
