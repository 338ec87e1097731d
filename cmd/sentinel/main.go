// Command sentinel runs Stock Sentinel.
package main

import (
	"fmt"
	"os"

	"stock-sentinel/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
