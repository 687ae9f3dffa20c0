package main

import (
	"os"

	"linkcheck-step/cmd/linkcheck/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
