package sandbox

import (
	"strings"

	"github.com/flowbench/flowbench/internal/errors"
)

// Language identifies the runtime a snippet executes under.
type Language string

const (
	// LanguagePython runs snippets via a standalone Python interpreter.
	LanguagePython Language = "python"

	// LanguageJavaScript runs snippets via a node-compatible runtime.
	LanguageJavaScript Language = "javascript"
)

// String returns the string representation of the language
func (l Language) String() string {
	return string(l)
}

// Valid reports whether the language is one of the supported runtimes.
func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageJavaScript:
		return true
	default:
		return false
	}
}

// FileExtension returns the source file extension for the language.
func (l Language) FileExtension() string {
	switch l {
	case LanguagePython:
		return ".py"
	case LanguageJavaScript:
		return ".js"
	default:
		return ""
	}
}

// ParseLanguage parses a string into a Language.
// Common aliases (py, js, node) are accepted.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "py", "python3":
		return LanguagePython, nil
	case "javascript", "js", "node":
		return LanguageJavaScript, nil
	default:
		return "", errors.NewUnknownLanguageError(s)
	}
}
