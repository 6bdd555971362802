// Command amber runs the hierarchical intent chatbot.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "amber: %v\n", err)
		os.Exit(1)
	}
}
