package main

import (
	"fmt"
	"os"

	"github.com/halcyon-data/docdex/cmd/docdex/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
