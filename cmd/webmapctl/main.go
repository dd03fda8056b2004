// Command webmapctl applies definition filters and editing-form defaults
// to the feature layers of hosted web maps.
package main

import (
	"fmt"
	"os"

	"github.com/fieldmaps/webmapctl/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
