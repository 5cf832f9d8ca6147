package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shellc-lang/shellc/internal/clog"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	verbose bool
	logger  *clog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shellc",
	Short: "Compile a restricted Rust-like language to POSIX shell",
	Long: `shellc compiles a small, statically typed, safety-oriented subset of a
Rust-like language into deterministic, injection-safe POSIX sh.

Source text flows through lex, parse, validate, lower, and emit, with an
optional verify pass checking the emitted script's prologue shape, command
allow-list, quoting discipline, and determinism.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := clog.LevelInfo
		if verbose {
			level = clog.LevelDebug
		}
		logger = clog.New(os.Stderr, level)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
