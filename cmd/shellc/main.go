// Command shellc compiles a restricted Rust-like language to POSIX shell.
package main

import (
	"os"

	"github.com/shellc-lang/shellc/cmd/shellc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
