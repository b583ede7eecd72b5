package main

import (
	"fmt"
	"os"

	"github.com/AnyUserName/imgkit-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "imgkit: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
