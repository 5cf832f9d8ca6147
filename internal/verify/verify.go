// Package verify runs structural checks over an already-emitted POSIX shell
// script: prologue shape, command-name allow-listing, quoting discipline,
// and (when the IR that produced the script is available) determinism.
// Where the allow-list and forbidden-construct checks need real shell
// structure rather than text patterns, this parses the script with
// mvdan.cc/sh/v3's POSIX grammar and walks the resulting tree. The
// prologue check stays regexp-driven: it is line-shaped and needs no
// shell structure.
package verify

import (
	"fmt"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/shellc-lang/shellc/internal/emit"
	"github.com/shellc-lang/shellc/internal/shellir"
	"github.com/shellc-lang/shellc/internal/validate"
)

// Violation is a single structural problem found in a script.
type Violation struct {
	Kind    string // PrologueShape, ForbiddenConstruct, UnquotedExpansion, NotDeterministic, ParseFailed
	Message string
}

func (v *Violation) Error() string { return fmt.Sprintf("%s: %s", v.Kind, v.Message) }

// Error collects every Violation found by a single Verify call.
type Error struct {
	Violations []*Violation
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("verification failed with %d issue(s):\n%s", len(e.Violations), strings.Join(msgs, "\n"))
}

var (
	shebangRe = regexp.MustCompile(`^#!/bin/sh\s*$`)
	setEufRe  = regexp.MustCompile(`^set -euf\s*$`)
)

// fixedBuiltins are the shell builtins and utilities the emitter's own
// output relies on — test brackets, return, the true/false commands, and
// the handful the runtime helpers call; a script built by Emit may invoke
// these even though no user function or runtime helper shares their name.
var fixedBuiltins = map[string]bool{
	":":      true,
	"[":      true,
	"set":    true,
	"true":   true,
	"false":  true,
	"return": true,
	"printf": true,
	"exit":   true,
	"eval":   true,
}

// CheckPrologue verifies the script opens with the fixed shebang and
// `set -euf` lines every emitted script must carry.
func CheckPrologue(script string) []*Violation {
	lines := strings.SplitN(script, "\n", 3)
	var out []*Violation
	if len(lines) < 1 || !shebangRe.MatchString(lines[0]) {
		out = append(out, &Violation{Kind: "PrologueShape", Message: `script must open with "#!/bin/sh"`})
	}
	if len(lines) < 2 || !setEufRe.MatchString(lines[1]) {
		out = append(out, &Violation{Kind: "PrologueShape", Message: `script's second line must be "set -euf"`})
	}
	return out
}

// AllowedCommands returns the set of command names a script emitted for mod
// may legally invoke: every declared function, plus the runtime helpers
// (when the emitter was configured to include them) and the small set of
// shell builtins the prologue and helpers themselves depend on.
func AllowedCommands(mod *shellir.Module, cfg emit.Config) map[string]bool {
	allowed := map[string]bool{}
	for name := range fixedBuiltins {
		allowed[name] = true
	}
	if cfg.EmitRuntimeHelpers {
		for name := range validate.HelperSignatures {
			allowed[name] = true
		}
	}
	if mod != nil {
		for _, fn := range mod.Functions {
			allowed[fn.Name] = true
		}
	}
	return allowed
}

// CheckStructure parses script as POSIX sh and walks the tree for two
// classes of problem: an invocation of a command that is not in allowed,
// not one of the fixed builtins, and not a function the script declares; and a
// shell construct the compiler never emits and that only widens the
// script's attack surface if present (subshells, command/process
// substitution, background jobs, redirections, and similar). A parse
// failure is itself reported rather than silently skipping the rest of the
// checks, since a script that fails to parse as POSIX sh cannot be POSIX
// sh by definition.
func CheckStructure(script string, allowed map[string]bool) []*Violation {
	var out []*Violation

	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	file, err := parser.Parse(strings.NewReader(script), "")
	if err != nil {
		return []*Violation{{Kind: "ParseFailed", Message: fmt.Sprintf("script does not parse as POSIX sh: %s", err)}}
	}

	// A script's own function declarations are always callable within it,
	// even when verifying standalone text with no IR to read the function
	// list from (AllowedCommands only knows about mod's functions).
	syntax.Walk(file, func(node syntax.Node) bool {
		if fd, ok := node.(*syntax.FuncDecl); ok {
			allowed[fd.Name.Value] = true
		}
		return true
	})

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.CallExpr:
			if len(n.Args) == 0 {
				return true
			}
			name := wordLiteral(n.Args[0])
			if name != "" && !allowed[name] && !fixedBuiltins[name] {
				out = append(out, &Violation{Kind: "ForbiddenConstruct",
					Message: fmt.Sprintf("call to %q is not in the allowed command set", name)})
			}

		case *syntax.Stmt:
			if n.Background {
				out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "background execution (&) is not allowed"})
			}
			if len(n.Redirs) > 0 {
				out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "redirections are not allowed"})
			}

		case *syntax.Subshell:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "subshell ( ... ) is not allowed"})
		case *syntax.CmdSubst:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "command substitution $(...) is not allowed"})
		case *syntax.ProcSubst:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "process substitution is not allowed"})
		case *syntax.CoprocClause:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "coproc is not allowed"})
		case *syntax.TimeClause:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "time is not allowed"})
		case *syntax.LetClause:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "let is not allowed"})
		case *syntax.DeclClause:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: fmt.Sprintf("%s is not allowed", n.Variant)})
		case *syntax.CaseClause:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "case is not allowed"})
		case *syntax.ForClause:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "for loops are not allowed"})
		case *syntax.WhileClause:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "while/until loops are not allowed"})
		case *syntax.TestClause:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "[[ ]] is not POSIX and is not allowed"})
		case *syntax.ExtGlob:
			out = append(out, &Violation{Kind: "ForbiddenConstruct", Message: "extended glob patterns are not allowed"})
		}
		return true
	})

	return out
}

// wordLiteral renders a Word to its literal text when it is made up only
// of Lit/SglQuoted parts (a plain command name), and returns "" otherwise
// (a dynamic or expanded command name, which the allow-list check cannot
// meaningfully evaluate and so does not flag).
func wordLiteral(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		default:
			return ""
		}
	}
	return sb.String()
}

// CheckQuoting walks the parsed script for a parameter expansion that
// appears directly inside a command word rather than wrapped in double
// quotes. `"$v"` parses as a Word containing a DblQuoted wrapping the
// ParamExp; a bare `$v` parses as a Word containing the ParamExp directly
// — so flagging any top-level ParamExp WordPart catches exactly the
// injection-unsafe case without needing to track quote state by hand.
// Arithmetic contexts are exempt: inside $(( )) no word splitting or glob
// expansion can occur, so the walk does not descend into them.
func CheckQuoting(script string) []*Violation {
	var out []*Violation

	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	file, err := parser.Parse(strings.NewReader(script), "")
	if err != nil {
		// already reported by CheckStructure; avoid a duplicate complaint.
		return nil
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ArithmExp:
			return false
		case *syntax.Word:
			for _, part := range n.Parts {
				if pe, ok := part.(*syntax.ParamExp); ok {
					out = append(out, &Violation{Kind: "UnquotedExpansion",
						Message: fmt.Sprintf("parameter expansion of %q is not double-quoted", pe.Param.Value)})
				}
			}
		}
		return true
	})

	return out
}

// CheckDeterminism re-emits mod with cfg and compares the result to script
// byte-for-byte. Emit is specified to be a pure function of (mod, cfg), so
// any difference indicates either a non-deterministic emission bug or that
// script was not actually produced by this (mod, cfg) pair.
func CheckDeterminism(script string, mod *shellir.Module, cfg emit.Config) []*Violation {
	if mod == nil {
		return nil
	}
	again, err := emit.Emit(mod, cfg)
	if err != nil {
		return []*Violation{{Kind: "NotDeterministic", Message: fmt.Sprintf("re-emitting the module failed: %s", err)}}
	}
	if again != script {
		return []*Violation{{Kind: "NotDeterministic", Message: "re-emitting the same module produced a different script"}}
	}
	return nil
}

// Verify runs every structural check against script. mod may be nil, which
// degrades the check set to the text-only ones (prologue, structure,
// quoting) — the mode `shellc verify` uses against a script it did not
// itself just compile, since determinism needs the source IR to re-emit
// from. A nil error means script passed every check that could run.
func Verify(script string, mod *shellir.Module, cfg emit.Config) error {
	var violations []*Violation
	violations = append(violations, CheckPrologue(script)...)
	violations = append(violations, CheckStructure(script, AllowedCommands(mod, cfg))...)
	violations = append(violations, CheckQuoting(script)...)
	violations = append(violations, CheckDeterminism(script, mod, cfg)...)

	if len(violations) == 0 {
		return nil
	}
	return &Error{Violations: violations}
}
