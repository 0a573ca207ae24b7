package main

import (
	"os"

	"github.com/mycelian/mycelian-desk/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
