package main

import (
	"os"

	"github.com/labkit/microdoser/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
