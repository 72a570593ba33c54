package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dyluth/halo/internal/printer"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printer.Printf("halo %s\n", rootCmd.Version)
		printer.Printf("go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
