// Command docmoa is a local hybrid document search engine.
package main

import (
	"fmt"
	"os"

	"github.com/moa-labs/docmoa/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
