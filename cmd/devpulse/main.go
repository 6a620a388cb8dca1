package main

import (
	"fmt"
	"os"
)

// set by -ldflags "-X main.version=..."
var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
