package shellc

import (
	"fmt"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

// fixtures covers the language's core shapes (integer arithmetic, string
// concatenation, boolean logic, conditionals, function calls, recursion)
// plus the emitter's documented decisions (negation style, return-value
// convention, multi-line string literals, runtime helper calls), using
// go-snaps to pin the exact emitted shell text per scenario.
var fixtures = []struct {
	name string
	src  string
	cfg  Config
}{
	{
		name: "integer_arithmetic",
		src: `fn main() {
			let a = 3;
			let b = 4;
			let sum = a + b;
			return;
		}`,
		cfg: DefaultConfig(),
	},
	{
		name: "string_concatenation",
		src: `fn main() {
			let greeting = "hello, " + "world";
			echo(greeting);
			return;
		}`,
		cfg: DefaultConfig(),
	},
	{
		name: "boolean_logic",
		src: `fn main() {
			let a = true;
			let b = false;
			let c = a && !b;
			return;
		}`,
		cfg: DefaultConfig(),
	},
	{
		name: "conditional_chain",
		src: `fn classify(n: Int) -> Str {
			if n < 0 {
				return "negative";
			} else if n == 0 {
				return "zero";
			} else {
				return "positive";
			}
		}
		fn main() {
			let r = classify(5);
			echo(r);
			return;
		}`,
		cfg: DefaultConfig(),
	},
	{
		name: "function_call",
		src: `fn add(a: Int, b: Int) -> Int {
			return a + b;
		}
		fn main() {
			let s = add(2, 3);
			return;
		}`,
		cfg: DefaultConfig(),
	},
	{
		name: "recursion",
		src: `fn fact(n: Int) -> Int {
			if n <= 1 {
				return 1;
			}
			let prev = fact(n - 1);
			return n * prev;
		}
		fn main() {
			let r = fact(5);
			return;
		}`,
		cfg: DefaultConfig(),
	},
	{
		name: "negation_style_test_z",
		src: `fn main() {
			let enabled = false;
			if !enabled {
				return;
			}
			return;
		}`,
		cfg: Config{MaxRecursionDepth: 100, EmitRuntimeHelpers: true, NegationStyle: 1, VerifyAfterEmit: true},
	},
	{
		name: "multiline_string_literal",
		src:  "fn main() {\n\tlet msg = \"line one\nline two\";\n\techo(msg);\n\treturn;\n}",
		cfg:  DefaultConfig(),
	},
	{
		name: "runtime_helper_calls",
		src: `fn main() {
			let region = env_var_or("REGION", "us-east-1");
			echo(region);
			exit_with(0);
			return;
		}`,
		cfg: DefaultConfig(),
	},
	{
		name: "no_runtime_helpers",
		src: `fn main() {
			let x = 1 + 1;
			return;
		}`,
		cfg: Config{MaxRecursionDepth: 100, EmitRuntimeHelpers: false, NegationStyle: 0, VerifyAfterEmit: false},
	},
}

func TestCompileFixtures(t *testing.T) {
	for _, fx := range fixtures {
		t.Run(fx.name, func(t *testing.T) {
			script, err := Compile(fx.src, fx.cfg)
			if err != nil {
				t.Fatalf("Compile(%s) failed: %v", fx.name, err)
			}
			snaps.MatchSnapshot(t, fmt.Sprintf("%s_output", fx.name), script)
		})
	}
}
