package mux

import "strings"

// ShellQuote escapes s for safe interpolation inside a double-quoted
// shell string, the way Lifecycle Manager step 6 must escape an
// initialPrompt before passing it to SendKeys. It
// escapes backslash, double-quote, dollar, backtick, and exclamation —
// the five characters that matter inside double quotes under bash/zsh
// (the teacher project's configured shells), then wraps the result in
// double quotes.
func ShellQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '$', '`', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
