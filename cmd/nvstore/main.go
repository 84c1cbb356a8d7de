// cmd/nvstore/main.go
package main

import (
	"os"

	"github.com/tamzrod/nvstore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
