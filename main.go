// Package main is the entry point for compilerd.
// It serves the model compiler over gRPC and drives compile sessions as a client.
package main

import (
	"compilerd/service/cmd"
)

// main initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
