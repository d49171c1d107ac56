package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "resonance-node",
	Short: "Resonance P2P voice room node",
	Long: `resonance-node drives one peer-to-peer encrypted voice room node:
bootstrap a room over UDP, approve or deny join requests, and hand the
resulting WebRTC connections off to an audio pipeline.

This CLI is a thin driver over the room.Handler state machine — it has
no TUI and no audio wiring of its own.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
