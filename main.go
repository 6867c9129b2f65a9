package main

import (
	"os"

	"github.com/ambufleet/dispatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
