// Command autotransform is the entry point for the AutoTransform engine:
// running schemas, managing outstanding changes, and driving the scheduler.
package main

import (
	"os"

	"github.com/nathro/autotransform/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
