// Command winectl runs one-shot restaurant, logistics and wine catalog lookups
// against the same local tables the service uses.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd(loadDeps).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
