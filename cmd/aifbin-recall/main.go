// Command aifbin-recall is the terminal dispatcher for the retrieval
// service: index directories of .aif-bin files, search the resulting
// store, and serve the tool-protocol surface for an AI agent host.
package main

import (
	"fmt"
	"os"

	"github.com/aifbin/recall/cmd/aifbin-recall/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
