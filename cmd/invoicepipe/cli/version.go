package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the build version, overridable at link time:
//
//	go build -ldflags "-X github.com/invoicepipe/invoicepipe/cmd/invoicepipe/cli.Version=v1.2.3"
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("invoicepipe %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
