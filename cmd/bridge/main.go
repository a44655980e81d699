package main

import (
	"os"

	"mt5_bridge/cmd/bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
