package main

import (
	"os"

	"github.com/loomcms/loom/cmd/cmsctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
