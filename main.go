package main

import (
	"os"

	"github.com/spigell/cold-mailer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
