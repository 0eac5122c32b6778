package main

import (
	"os"

	"github.com/masahiro331/go-ext4-metadata/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
