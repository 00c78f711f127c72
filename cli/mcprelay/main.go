package main

import (
	"os"

	mcprelaycmder "github.com/papercomputeco/mcprelay/cmd/mcprelay"
)

func main() {
	cmd := mcprelaycmder.NewMcprelayCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
