// Command priorart is the entry point for the prior-art analysis service.
// It provides a CLI (via Cobra) for one-off analyses and searches, an index
// builder, and the HTTP gateway.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/priorart-go/cmd/priorart/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
