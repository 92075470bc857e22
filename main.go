// The main package for the regintel executable.
package main

import (
	"os"

	"github.com/hkfcheung/regintel-sub001/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
