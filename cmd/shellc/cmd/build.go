package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shellc-lang/shellc/internal/emit"
	"github.com/shellc-lang/shellc/pkg/shellc"
)

var (
	buildOutputFile   string
	buildNoHelpers    bool
	buildNoVerify     bool
	buildNegationZero bool
)

var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "Compile a source file to a POSIX shell script",
	Long: `Run the full pipeline — lex, parse, validate, lower, emit, and (by
default) verify — over a source file and write the resulting POSIX shell
script.

Examples:
  # Compile a script, writing <input>.sh
  shellc build script.rsh

  # Compile with a custom output path
  shellc build script.rsh -o out.sh

  # Compile without the post-emission verification pass
  shellc build script.rsh --no-verify`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildOutputFile, "output", "o", "", "output file (default: <input>.sh)")
	buildCmd.Flags().BoolVar(&buildNoHelpers, "no-runtime-helpers", false, "omit the echo/concat/env_var_or/exit_with shell functions")
	buildCmd.Flags().BoolVar(&buildNoVerify, "no-verify", false, "skip the post-emission verification pass")
	buildCmd.Flags().BoolVar(&buildNegationZero, "negation-test-z", false, "render unary ! as [ -z \"$v\" ] instead of ! [ -n \"$v\" ]")
}

func runBuild(cmd *cobra.Command, args []string) error {
	filename := args[0]
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	cfg := shellc.DefaultConfig()
	cfg.File = filename
	cfg.EmitRuntimeHelpers = !buildNoHelpers
	cfg.VerifyAfterEmit = !buildNoVerify
	if buildNegationZero {
		cfg.NegationStyle = emit.TestZ
	}

	logger.Debug("compiling %s", filename)
	script, err := shellc.Compile(string(content), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return fmt.Errorf("compilation failed")
	}

	outFile := buildOutputFile
	if outFile == "" {
		ext := filepath.Ext(filename)
		if ext != "" {
			outFile = strings.TrimSuffix(filename, ext) + ".sh"
		} else {
			outFile = filename + ".sh"
		}
	}

	if err := os.WriteFile(outFile, []byte(script), 0755); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", outFile, err)
	}

	logger.Info("Compiled %s -> %s", filename, outFile)
	return nil
}
