package sandbox

import (
	"strings"
	"testing"

	"github.com/flowbench/flowbench/internal/errors"
)

func TestGenerateHarnessPython(t *testing.T) {
	source := "def transform(inputs):\n    return inputs\n"
	harness, err := generateHarness(LanguagePython, source, map[string]any{"n": 1})
	if err != nil {
		t.Fatalf("generateHarness() error = %v", err)
	}

	for _, want := range []string{
		"import json as _fb_json",
		`inputs = _fb_json.loads("{\"n\":1}")`,
		source,
		"print(_fb_json.dumps(_fb_result))",
	} {
		if !strings.Contains(harness, want) {
			t.Errorf("python harness missing %q:\n%s", want, harness)
		}
	}

	// The probe chain must follow the priority order of the table.
	last := -1
	for _, ep := range entryPoints {
		probe := `callable(_fb_globals.get("` + ep.name + `"))`
		idx := strings.Index(harness, probe)
		if idx < 0 {
			t.Fatalf("python harness does not probe %q", ep.name)
		}
		if idx < last {
			t.Errorf("probe for %q appears before its predecessor", ep.name)
		}
		last = idx
	}
}

func TestGenerateHarnessJavaScript(t *testing.T) {
	source := "function main(inputs) { return inputs; }"
	harness, err := generateHarness(LanguageJavaScript, source, nil)
	if err != nil {
		t.Fatalf("generateHarness() error = %v", err)
	}

	for _, want := range []string{
		`const inputs = JSON.parse("{}");`,
		source,
		`typeof main === "function"`,
		`typeof module !== "undefined" && typeof module.exports === "function"`,
		"Promise.resolve(_fbResult)",
		"process.exit(1)",
	} {
		if !strings.Contains(harness, want) {
			t.Errorf("javascript harness missing %q:\n%s", want, harness)
		}
	}

	// module.exports must be the last probe so named functions win.
	exportsIdx := strings.Index(harness, "module.exports")
	for _, ep := range entryPoints {
		if idx := strings.Index(harness, "typeof "+ep.name); idx > exportsIdx {
			t.Errorf("probe for %q appears after module.exports", ep.name)
		}
	}
}

func TestGenerateHarnessAggregateUnwrapsItems(t *testing.T) {
	harness, err := generateHarness(LanguagePython, "def aggregate(items):\n    return len(items)\n", map[string]any{"items": []any{1, 2}})
	if err != nil {
		t.Fatalf("generateHarness() error = %v", err)
	}
	if !strings.Contains(harness, `_fb_arg = inputs["items"]`) {
		t.Errorf("python harness does not unwrap items for aggregate:\n%s", harness)
	}
}

func TestGenerateHarnessUnknownLanguage(t *testing.T) {
	_, err := generateHarness(Language("ruby"), "puts 1", nil)
	if err == nil {
		t.Fatal("generateHarness() expected error for unknown language")
	}
	if code := errors.CodeOf(err); code != errors.ErrCodeConfigUnknownLanguage {
		t.Errorf("error code = %s, want %s", code, errors.ErrCodeConfigUnknownLanguage)
	}
}

func TestGenerateHarnessInputsLiteralIsEscaped(t *testing.T) {
	inputs := map[string]any{"text": `he said "hi"` + "\nnext line"}
	harness, err := generateHarness(LanguagePython, "x = 1", inputs)
	if err != nil {
		t.Fatalf("generateHarness() error = %v", err)
	}
	// Raw quotes or newlines inside the literal would break the
	// generated source line.
	line := ""
	for _, l := range strings.Split(harness, "\n") {
		if strings.HasPrefix(l, "inputs = ") {
			line = l
			break
		}
	}
	if line == "" {
		t.Fatal("harness has no inputs binding line")
	}
	if strings.Contains(line, `he said "hi"`) {
		t.Errorf("inputs literal not escaped: %s", line)
	}
}

func TestCodeSpecValidate(t *testing.T) {
	tests := []struct {
		name     string
		spec     CodeSpec
		wantCode errors.ErrorCode
	}{
		{
			name: "valid inline source",
			spec: CodeSpec{Language: LanguagePython, Source: "x = 1", TimeoutSeconds: 30},
		},
		{
			name: "valid file path",
			spec: CodeSpec{Language: LanguageJavaScript, FilePath: "script.js", TimeoutSeconds: 1},
		},
		{
			name:     "unknown language",
			spec:     CodeSpec{Language: "ruby", Source: "puts 1", TimeoutSeconds: 30},
			wantCode: errors.ErrCodeConfigUnknownLanguage,
		},
		{
			name:     "both source and file",
			spec:     CodeSpec{Language: LanguagePython, Source: "x = 1", FilePath: "a.py", TimeoutSeconds: 30},
			wantCode: errors.ErrCodeConfigCodeSpec,
		},
		{
			name:     "neither source nor file",
			spec:     CodeSpec{Language: LanguagePython, TimeoutSeconds: 30},
			wantCode: errors.ErrCodeConfigCodeSpec,
		},
		{
			name:     "zero timeout",
			spec:     CodeSpec{Language: LanguagePython, Source: "x = 1"},
			wantCode: errors.ErrCodeConfigTimeout,
		},
		{
			name:     "negative timeout",
			spec:     CodeSpec{Language: LanguagePython, Source: "x = 1", TimeoutSeconds: -5},
			wantCode: errors.ErrCodeConfigTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if code := errors.CodeOf(err); code != tt.wantCode {
				t.Errorf("Validate() code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestCodeSpecDigest(t *testing.T) {
	a := CodeSpec{Language: LanguagePython, Source: "x = 1", TimeoutSeconds: 30}
	b := CodeSpec{Language: LanguagePython, Source: "x = 1", TimeoutSeconds: 60}
	if a.Digest() != b.Digest() {
		t.Error("digest should not depend on timeout")
	}

	c := CodeSpec{Language: LanguagePython, Source: "x = 2", TimeoutSeconds: 30}
	if a.Digest() == c.Digest() {
		t.Error("digest should change with source")
	}

	d := CodeSpec{Language: LanguageJavaScript, Source: "x = 1", TimeoutSeconds: 30}
	if a.Digest() == d.Digest() {
		t.Error("digest should change with language")
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"python", LanguagePython, false},
		{"python3", LanguagePython, false},
		{"py", LanguagePython, false},
		{"javascript", LanguageJavaScript, false},
		{"js", LanguageJavaScript, false},
		{"node", LanguageJavaScript, false},
		{"Python", LanguagePython, false},
		{"ruby", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLanguage(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLanguage(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLanguage(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLanguage(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
