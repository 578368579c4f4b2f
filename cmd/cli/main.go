// logmatrix extracts traffic and bandwidth matrices from distributed
// training logs.
package main

import (
	"os"

	"github.com/ccollicutt/logmatrix/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
