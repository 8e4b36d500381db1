package main

import (
	"os"

	"github.com/austindbirch/realty_relay/cmd/realtyctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
