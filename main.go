// Package main is the entry point for the photodup command line tool
package main

import (
	"log"

	"photodup/internal/cli"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	cli.Execute()
}
