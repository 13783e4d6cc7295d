package main

import (
	"os"

	"github.com/star/umbra/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
