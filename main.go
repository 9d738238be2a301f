// Package main provides the minuted entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/minutedapp/minuted/cmd"
)

func main() {
	root := cmd.NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
