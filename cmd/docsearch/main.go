package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/cmd/docsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
