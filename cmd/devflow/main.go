package main

import (
	"os"

	"github.com/devflow/devflow/internal/app/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
