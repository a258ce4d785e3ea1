package main

import (
	"os"

	"github.com/chollinger93/ipcam-snapshot/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
