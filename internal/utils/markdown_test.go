package utils

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"(#131026) Message_undeliverable", `(#131026) Message\_undeliverable`},
		{"*bold* [link]", `\*bold\* \[link]`},
		{"`code` ~x~", "\\`code\\` ~x~"},
		{`C:\path`, `C:\path`},
	}

	for _, tt := range tests {
		if got := EscapeMarkdown(tt.in); got != tt.want {
			t.Fatalf("EscapeMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
