package main

import (
	"fmt"
	"os"

	"github.com/ayo6706/parimutuel-markets/internal/app"
)

func main() {
	run := app.Run
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		run = app.Migrate
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}
