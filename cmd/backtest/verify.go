package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/0xtitan6/backtest-v2/internal/fingerprint"
	"github.com/0xtitan6/backtest-v2/internal/launch"
	"github.com/0xtitan6/backtest-v2/internal/runartifact"
)

var verifyArtifactDir string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay a config twice and confirm the two runs are bit-for-bit identical",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)

		first, err := launch.Run(cfg, launch.Overlay{}, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: first pass: %s\n", err)
			os.Exit(exitRuntimeError)
		}
		second, err := launch.Run(cfg, launch.Overlay{}, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: second pass: %s\n", err)
			os.Exit(exitRuntimeError)
		}

		if err := fingerprint.CheckReplay(first.Fingerprint, second.Fingerprint); err != nil {
			fmt.Fprintf(os.Stderr, "NOT REPRODUCIBLE: %s\n", err)
			os.Exit(exitUntrusted)
		}
		fmt.Printf("reproducible: %s matches across two independent passes\n", first.Fingerprint.Final)

		if verifyArtifactDir != "" {
			stored, err := readManifest(verifyArtifactDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: read artifact %s: %s\n", verifyArtifactDir, err)
				os.Exit(exitRuntimeError)
			}
			if stored.RunFingerprint != first.Fingerprint.Final.String() {
				fmt.Fprintf(os.Stderr, "NOT REPRODUCIBLE: artifact fingerprint %s does not match replayed fingerprint %s\n",
					stored.RunFingerprint, first.Fingerprint.Final)
				os.Exit(exitUntrusted)
			}
			fmt.Printf("artifact %s matches replayed fingerprint\n", verifyArtifactDir)
		}

		os.Exit(exitTrusted)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyArtifactDir, "artifact", "", "path to a previously written run artifact directory to cross-check against (optional)")
}

// readManifest loads a stored run artifact's manifest.json directly off
// disk, without needing the store's own content-addressed root — verify is
// handed the run's own directory, not the store it lives under.
func readManifest(dir string) (runartifact.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return runartifact.Manifest{}, err
	}
	var m runartifact.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return runartifact.Manifest{}, err
	}
	return m, nil
}
