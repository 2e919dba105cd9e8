package main

import (
	"os"

	"github.com/garnizeh/ats/cmd/atsctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
