package main

import (
	"fmt"
	"os"
)

func main() {
	if err := New().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mbfid: %v\n", err)
		os.Exit(1)
	}
}
