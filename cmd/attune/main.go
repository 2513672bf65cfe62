package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "attune",
		Short: "Declarative, attribute-driven UI enhancement toolkit",
		Long: `Attune enhances documents through marker attributes, loading only
the modules a page actually uses. This binary hosts the reactive
data-binding runtime:

  • Observable stores over plain nested data
  • Computed values with automatic dependency tracking
  • Coalesced update delivery per tick
  • Live state inspection over HTTP and WebSocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
