package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Iron-Ham/mproc/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "mproc:", cmd.FormatError(exitErr))
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", cmd.FormatError(err))
		os.Exit(1)
	}
}
