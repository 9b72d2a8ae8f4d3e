package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/hermes/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "hermes",
	Short: "A client for the Hermes pub/sub protocol",
	Long: `A client for the Hermes pub/sub protocol

Subscribe to subjects, publish payloads and poke at a running broker from
the command line. The broker address comes from HERMES_ADDR or the --addr
flag each command carries.
`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(SubCmd)
	RootCmd.AddCommand(PubCmd)
	RootCmd.AddCommand(PingCmd)
	RootCmd.AddCommand(ConsoleCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
