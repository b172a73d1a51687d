package output

import (
	"fmt"
	"strings"
)

// FormatHeader returns an ATX markdown heading of the given level.
// Levels are clamped to the 1..6 range markdown defines.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a bolded key-value line for markdown output.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("**%s:** %s", key, value)
}

// FormatCodeBlock wraps code in a fenced block with an optional language tag.
func FormatCodeBlock(lang, code string) string {
	var b strings.Builder
	b.WriteString("```")
	b.WriteString(lang)
	b.WriteByte('\n')
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("```")
	return b.String()
}
