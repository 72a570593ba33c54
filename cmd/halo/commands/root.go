package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/halo/internal/printer"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd runs one edge-detection pass. Without member environment variables
// the whole process group runs inside this process.
var rootCmd = &cobra.Command{
	Use:   "halo <input_file> <output_folder> <width> <height>",
	Short: "Halo - distributed Sobel/Prewitt edge detection",
	Long: `Halo applies the Sobel and Prewitt edge detectors to a raw RGB image
(width*height*3 bytes, no header) and writes sobel_output.bin and
prewitt_output.bin into the output folder.

The image is split into row blocks across a group of members that exchange
boundary rows with their neighbours. By default the group runs in this process
with HALO_PROCS members (CPU count if unset). Use 'halo launch' to run one
process per member over Redis.`,
	Version: version,
	Args:    requireImageArgs,
	RunE:    runEdgeDetect,
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// requireImageArgs accepts exactly the four image arguments.
func requireImageArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 4 {
		return nil
	}
	return printer.Error(
		"wrong number of arguments",
		fmt.Sprintf("Expected 4 arguments, got %d.\n\nUsage: %s", len(args), cmd.UseLine()),
		[]string{"Example: halo image.bin out 640 480"},
	)
}
