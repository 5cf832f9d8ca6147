package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shellc-lang/shellc/internal/lexer"
)

var (
	lexShowPos    bool
	lexOnlyErrors bool
)

var lexCmd = &cobra.Command{
	Use:   "lex <file>",
	Short: "Tokenize a source file and print the resulting tokens",
	Long: `Tokenize a restricted-language source file and print the resulting
token stream. Useful for debugging the lexer.`,
	Args: cobra.ExactArgs(1),
	RunE: runLex,
}

func init() {
	rootCmd.AddCommand(lexCmd)

	lexCmd.Flags().BoolVar(&lexShowPos, "show-pos", false, "show token positions (line:column)")
	lexCmd.Flags().BoolVar(&lexOnlyErrors, "only-errors", false, "show only illegal tokens")
}

func runLex(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", args[0], err)
	}

	l := lexer.New(string(content))

	count, errCount := 0, 0
	for {
		tok := l.NextToken()
		if tok.Type == lexer.EOF {
			break
		}
		if lexOnlyErrors && tok.Type != lexer.ILLEGAL {
			continue
		}
		count++
		if tok.Type == lexer.ILLEGAL {
			errCount++
		}
		printToken(tok)
	}

	for _, le := range l.Errors() {
		logger.Error("%s at %s", le.Message, le.Pos)
	}

	if len(l.Errors()) > 0 {
		return fmt.Errorf("lexing failed with %d error(s)", len(l.Errors()))
	}
	return nil
}

func printToken(tok lexer.Token) {
	out := fmt.Sprintf("%-12v %q", tok.Type, tok.Literal)
	if lexShowPos {
		out += fmt.Sprintf(" @%s", tok.Pos)
	}
	fmt.Println(out)
}
