package expander

import (
	"fmt"
	"sort"
	"strings"
)

// ExtractSQL pulls the SQL statement out of a model reply. A fenced
// block wins over surrounding prose; without a fence the whole reply is
// taken verbatim. A reply that is empty once fences and whitespace are
// stripped is a synthesis failure.
func ExtractSQL(text string) (string, error) {
	sqlText := strings.TrimSpace(stripFence(strings.TrimSpace(text)))
	if sqlText == "" {
		return "", fmt.Errorf("model reply contained no sql")
	}
	return sqlText, nil
}

// stripFence returns the body of the first fenced block, or the input
// unchanged when no fence is present. A language tag on the opening
// fence line is dropped.
func stripFence(text string) string {
	idx := strings.Index(text, "```")
	if idx < 0 {
		return text
	}
	inner := text[idx+3:]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(inner[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, " \t;") && len(firstLine) <= 12 {
			inner = inner[nl+1:]
		}
	}
	if end := strings.Index(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	return strings.TrimSpace(inner)
}

// UnapprovedReferences scans SQL for identifiers of known relations
// outside the approved set. The check is a conservative word-boundary
// substring scan over qualified names, not a full parse.
func UnapprovedReferences(sqlText string, approved map[string]bool, known []string) []string {
	haystack := strings.ToLower(sqlText)

	var offenders []string
	for _, name := range known {
		if approved[name] {
			continue
		}
		if containsIdentifier(haystack, strings.ToLower(name)) {
			offenders = append(offenders, name)
		}
	}
	sort.Strings(offenders)
	return offenders
}

func containsIdentifier(haystack, needle string) bool {
	for from := 0; ; {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		if !identChar(byteAt(haystack, start-1)) && !identChar(byteAt(haystack, end)) {
			return true
		}
		from = start + 1
	}
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func identChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.':
		return true
	}
	return false
}
