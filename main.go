package main

import (
	"os"

	"railbooker/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
