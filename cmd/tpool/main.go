// Command tpool drives a worker pool from the command line.
//
//	tpool run --workers 4 --tasks 32 --sleep 20ms
//	tpool sweep --max-workers 8
package main

import (
	"fmt"
	"os"

	"github.com/utkarsh5026/tpool/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		colorPrintLn(red, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		colorPrintLn(red, fmt.Sprintf("error: %v", err))
		os.Exit(1)
	}
}
