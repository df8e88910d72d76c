package main

import (
	"os"

	"github.com/sirosfoundation/go-iso20022/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
