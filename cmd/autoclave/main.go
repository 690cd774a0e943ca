package main

import (
	"fmt"
	"os"

	"github.com/curelab/autoclave/internal/engine"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(engine.ClassifyError(err))
	}
}
