// Package main is the machina command line.
package main

import (
	"log"
	"os"

	"go.viam.com/machina/cli"
)

func main() {
	if err := cli.NewApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
