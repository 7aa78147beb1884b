// tracekit decodes hardware debugging captures: logic analyzer SPI exports,
// crash dump console logs and textual Bluetooth HCI traces.
package main

import (
	"os"

	"github.com/ccollicutt/tracekit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
