// ABOUTME: Entry point for the sounddevice command line
// ABOUTME: Delegates to the cobra commands and exits with their status
package main

import (
	"os"

	"github.com/nocarryr/go-sounddevice/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
