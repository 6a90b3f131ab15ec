// Package protocol implements the client-facing line protocol: one
// command per newline-terminated line, fields delimited by unescaped
// pipes. Delimiters inside field values are backslash-escaped so that
// message bodies may contain |, commas and newlines.
package protocol

import (
	"errors"
	"strings"
)

var ErrEmptyLine = errors.New("empty command line")

// Command is a parsed client line: NAME|arg1|arg2|...
type Command struct {
	Name string
	Args []string
}

func ParseLine(line string) (*Command, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return nil, ErrEmptyLine
	}

	parts := splitUnescaped(line, '|')
	cmd := &Command{Name: Unescape(parts[0])}
	for _, part := range parts[1:] {
		cmd.Args = append(cmd.Args, Unescape(part))
	}
	return cmd, nil
}

// FormatLine escapes each field, joins them with pipes and terminates
// the line. Used for every framed server push (NEW_USER, USER_LIST,
// HISTORY).
func FormatLine(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, Escape(field))
	}
	return strings.Join(parts, "|") + "\n"
}

// splitUnescaped splits on the delimiter, ignoring escaped occurrences
func splitUnescaped(s string, delimiter rune) []string {
	var parts []string
	var current strings.Builder
	escape := false

	for _, r := range s {
		if escape {
			current.WriteRune(r)
			escape = false
			continue
		}

		if r == '\\' {
			escape = true
			current.WriteRune(r)
			continue
		}

		if r == delimiter {
			parts = append(parts, current.String())
			current.Reset()
			continue
		}

		current.WriteRune(r)
	}

	parts = append(parts, current.String())
	return parts
}

// Unescape decodes escaped characters
func Unescape(s string) string {
	var result strings.Builder
	escape := false

	for i, r := range s {
		if escape {
			switch r {
			case '|':
				result.WriteRune('|')
			case ',':
				result.WriteRune(',')
			case '\\':
				result.WriteRune('\\')
			case 'n':
				result.WriteRune('\n')
			case 'r':
				result.WriteRune('\r')
			default:
				// Unrecognized escape, keep it as-is
				result.WriteRune('\\')
				result.WriteRune(r)
			}
			escape = false
			continue
		}

		if r == '\\' {
			if i < len(s)-1 {
				escape = true
				continue
			}
		}

		result.WriteRune(r)
	}

	// Trailing unescaped backslash
	if escape {
		result.WriteRune('\\')
	}

	return result.String()
}

// Escape encodes special characters
func Escape(s string) string {
	var result strings.Builder

	for _, r := range s {
		switch r {
		case '|':
			result.WriteString("\\|")
		case ',':
			result.WriteString("\\,")
		case '\\':
			result.WriteString("\\\\")
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}
