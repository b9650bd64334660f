package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/mproc/internal/platform"
)

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Show the detected platform and how processes are stopped",
	Args:  cobra.NoArgs,
	RunE:  runPlatform,
}

func init() {
	rootCmd.AddCommand(platformCmd)
}

func runPlatform(cmd *cobra.Command, args []string) error {
	kind := platform.Detect()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "platform:   %s (%s/%s)\n", kind, runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "unix:       %v\n", kind.IsUnix())
	fmt.Fprintf(out, "escalation: %s\n", kind.Escalation())
	return nil
}
