package main

import (
	"os"

	"github.com/spf13/cobra"

	"lan-gateway/gateway/internal/cli"
)

func main() {
	root := &cobra.Command{
		Use:          "gateway",
		Short:        "LAN gateway serving the web app to authorized devices",
		SilenceUsage: true,
	}

	root.AddCommand(
		cli.NewServeCommand(),
		cli.NewAllowlistCommand(),
		cli.NewUpdateCommand(),
		cli.NewAccessLogCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
