package main

import (
	"os"

	"github.com/dl-alexandre/gdm/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
