package utils

import "strings"

// markdownEscaper covers the characters Telegram's legacy Markdown mode lets
// you escape outside an entity. Escapes are not honored inside code spans.
var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// EscapeMarkdown makes provider error text safe to embed as plain text in a
// legacy Markdown alert message.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
