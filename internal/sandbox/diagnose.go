package sandbox

import "strings"

const pythonTracebackMarker = "Traceback (most recent call last):"

// diagnoseStderr scans stderr for recognizable error markers and returns
// the most specific error line plus the stack trace to attach to the
// result. When no marker is found, both fall back to the raw stderr.
func diagnoseStderr(language Language, stderr string) (errMsg, stackTrace string) {
	trimmed := strings.TrimSpace(stderr)
	if trimmed == "" {
		return "process exited with an error", ""
	}

	switch language {
	case LanguagePython:
		return diagnosePython(trimmed)
	case LanguageJavaScript:
		return diagnoseJavaScript(trimmed)
	default:
		return trimmed, trimmed
	}
}

func diagnosePython(stderr string) (string, string) {
	if idx := strings.Index(stderr, pythonTracebackMarker); idx >= 0 {
		trace := stderr[idx:]
		// The last non-empty line of a traceback carries the exception
		// type and message, e.g. "ValueError: bad".
		lines := strings.Split(strings.TrimSpace(trace), "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if line := strings.TrimSpace(lines[i]); line != "" {
				return line, trace
			}
		}
		return stderr, trace
	}

	// SyntaxError and friends print without the traceback header.
	if line := lastErrorLine(stderr); line != "" {
		return line, stderr
	}
	return stderr, stderr
}

func diagnoseJavaScript(stderr string) (string, string) {
	lines := strings.Split(stderr, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isErrorLine(line) || strings.HasPrefix(line, "throw ") {
			trace := strings.Join(lines[i:], "\n")
			if strings.HasPrefix(line, "throw ") && i+1 < len(lines) {
				// node prints "throw new Error(...)" followed by the
				// actual error line.
				if next := lastErrorLine(trace); next != "" {
					return next, trace
				}
			}
			return line, trace
		}
	}
	return stderr, stderr
}

// isErrorLine reports whether line looks like "SomeError: message".
func isErrorLine(line string) bool {
	idx := strings.Index(line, ": ")
	if idx <= 0 {
		return strings.HasSuffix(line, "Error") || strings.HasSuffix(line, "Exception")
	}
	head := line[:idx]
	if strings.ContainsAny(head, " \t") {
		return false
	}
	return strings.HasSuffix(head, "Error") || strings.HasSuffix(head, "Exception")
}

// lastErrorLine returns the last line matching the "SomeError: message"
// shape, or "" when none exists.
func lastErrorLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if isErrorLine(line) {
			return line
		}
	}
	return ""
}
