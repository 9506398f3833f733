package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the grpcheck application.
var rootCmd = &cobra.Command{
	Use:   "grpcheck",
	Short: "Declarative test runner for gRPC services",
	Long: `grpcheck validates gRPC service contracts from declarative test
definition files. Each file describes one RPC call (unary, client-streaming,
server-streaming or bidirectional) plus its expected results: an expected
response with layered comparison modes, an expected error, or jq-style
assertion groups matched against streamed messages.

Calls are issued through an external grpcurl-compatible client, so grpcheck
itself carries no gRPC wire code. Test files run concurrently through a
bounded worker pool with transient-failure retry, and failures are rendered
together at batch end.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "grpcheck version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
