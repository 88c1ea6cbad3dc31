// Package main is the entrypoint for the assistant service.
package main

import "github.com/msi-gate/assistant/internal/cli"

func main() {
	cli.Execute()
}
