package main

import (
	"os"

	"github.com/netbirdio/codepush/client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
