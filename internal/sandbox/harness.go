package sandbox

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowbench/flowbench/internal/errors"
)

// entryPoint is one candidate function name the harness probes for, in
// priority order. unwrapItems marks the aggregate convention: when the
// inputs object carries an "items" key, the function receives that list
// instead of the whole object. The asymmetry is deliberate; the custom
// aggregation strategy depends on it.
type entryPoint struct {
	name        string
	unwrapItems bool
}

// entryPoints is the priority-ordered probe table shared by both
// language harnesses. First defined, callable name wins; no match means
// the inputs are echoed back unchanged.
var entryPoints = []entryPoint{
	{name: "aggregate", unwrapItems: true},
	{name: "transform"},
	{name: "process_data"},
	{name: "process"},
	{name: "main"},
}

// generateHarness wraps the snippet in a self-contained program that
// binds inputs, probes the entry-point table, calls the first match,
// and prints the return value as one line of JSON on stdout. User-code
// exceptions are not caught: the interpreter's own traceback goes to
// stderr and the process exits non-zero.
func generateHarness(language Language, source string, inputs map[string]any) (string, error) {
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSandboxHarness, "marshal inputs", err)
	}
	if inputs == nil {
		inputsJSON = []byte("{}")
	}

	// Quote the JSON text once more to obtain a string literal that is
	// valid in both Python and JavaScript source.
	literal, err := json.Marshal(string(inputsJSON))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSandboxHarness, "quote inputs", err)
	}

	switch language {
	case LanguagePython:
		return generatePythonHarness(source, string(literal)), nil
	case LanguageJavaScript:
		return generateJavaScriptHarness(source, string(literal)), nil
	default:
		return "", errors.NewUnknownLanguageError(string(language))
	}
}

func generatePythonHarness(source, inputsLiteral string) string {
	var b strings.Builder

	b.WriteString("import json as _fb_json\n\n")
	fmt.Fprintf(&b, "inputs = _fb_json.loads(%s)\n\n", inputsLiteral)

	b.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("_fb_fn = None\n")
	b.WriteString("_fb_arg = inputs\n")
	b.WriteString("_fb_globals = globals()\n")
	for i, ep := range entryPoints {
		keyword := "elif"
		if i == 0 {
			keyword = "if"
		}
		fmt.Fprintf(&b, "%s callable(_fb_globals.get(%q)):\n", keyword, ep.name)
		fmt.Fprintf(&b, "    _fb_fn = _fb_globals[%q]\n", ep.name)
		if ep.unwrapItems {
			b.WriteString("    if isinstance(inputs, dict) and \"items\" in inputs:\n")
			b.WriteString("        _fb_arg = inputs[\"items\"]\n")
		}
	}
	b.WriteString("\n")
	b.WriteString("_fb_result = _fb_fn(_fb_arg) if _fb_fn is not None else inputs\n")
	b.WriteString("print(_fb_json.dumps(_fb_result))\n")

	return b.String()
}

func generateJavaScriptHarness(source, inputsLiteral string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "const inputs = JSON.parse(%s);\n\n", inputsLiteral)

	b.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("let _fbFn = null;\n")
	b.WriteString("let _fbArg = inputs;\n")
	for i, ep := range entryPoints {
		keyword := "} else if"
		if i == 0 {
			keyword = "if"
		}
		fmt.Fprintf(&b, "%s (typeof %s === \"function\") {\n", keyword, ep.name)
		fmt.Fprintf(&b, "  _fbFn = %s;\n", ep.name)
		if ep.unwrapItems {
			b.WriteString("  if (inputs !== null && typeof inputs === \"object\" && !Array.isArray(inputs) && \"items\" in inputs) {\n")
			b.WriteString("    _fbArg = inputs.items;\n")
			b.WriteString("  }\n")
		}
	}
	// The default module export is probed last; it only exists in the
	// JavaScript runtime.
	b.WriteString("} else if (typeof module !== \"undefined\" && typeof module.exports === \"function\") {\n")
	b.WriteString("  _fbFn = module.exports;\n")
	b.WriteString("}\n\n")

	b.WriteString("const _fbResult = _fbFn ? _fbFn(_fbArg) : inputs;\n")
	b.WriteString("Promise.resolve(_fbResult).then(\n")
	b.WriteString("  (value) => {\n")
	b.WriteString("    console.log(JSON.stringify(value === undefined ? null : value));\n")
	b.WriteString("  },\n")
	b.WriteString("  (err) => {\n")
	b.WriteString("    console.error(err && err.stack ? err.stack : String(err));\n")
	b.WriteString("    process.exit(1);\n")
	b.WriteString("  }\n")
	b.WriteString(");\n")

	return b.String()
}
