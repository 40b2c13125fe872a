// Command rtconnctl negotiates with and connects to real-time endpoints.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
