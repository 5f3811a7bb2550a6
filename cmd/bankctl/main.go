package main

import (
	"fmt"
	"os"

	"digitalbank/cmd/bankctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
