package notes

import (
	"strings"
	"testing"
)

func TestFilename(t *testing.T) {
	rules, err := CompileRules([]ExtensionRule{
		{TitleRegex: `^#`, Extension: "md"},
		{TitleRegex: `todo`, Extension: "txt"},
		{TitleRegex: `.*`, Extension: "never"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, title string
		rules       Rules
		want        string
	}{
		{"plain", "Shopping list", nil, "Shopping list (id1)"},
		{"first rule wins", "# todo", rules, " todo (id1).md"},
		{"second rule", "my todo", rules, "my todo (id1).txt"},
		{"empty", "", nil, " (id1)"},
		{"all invalid", "ñ/*?:", nil, " (id1)"},
		{"parens kept", "a (b) c", nil, "a (b) c (id1)"},
		{"unbalanced", "x(", nil, "x( (id1)"},
		{"long title cut", strings.Repeat("a", 300), nil, strings.Repeat("a", MaxBaseBytes) + " (id1)"},
		{"cut counts kept runes", strings.Repeat("é", 150) + strings.Repeat("b", 250), nil, strings.Repeat("b", MaxBaseBytes) + " (id1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filename("id1", tt.title, tt.rules)
			if got != tt.want {
				t.Errorf("Filename(%q) = %q, want %q", tt.title, got, tt.want)
			}
			if again := Filename("id1", tt.title, tt.rules); again != got {
				t.Errorf("not deterministic: %q vs %q", got, again)
			}
			id, ok := IDFromFilename(got)
			if !ok || id != "id1" {
				t.Errorf("IDFromFilename(%q) = %q, %v", got, id, ok)
			}
		})
	}
}

func TestCompileRulesRejectsBadRegex(t *testing.T) {
	if _, err := CompileRules([]ExtensionRule{{TitleRegex: "(", Extension: "x"}}); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestIDFromFilename(t *testing.T) {
	if _, ok := IDFromFilename("/tmp/notes/no-id.txt"); ok {
		t.Error("expected no id")
	}
	id, ok := IDFromFilename("/tmp/notes/a (b) (abc123).md")
	if !ok || id != "abc123" {
		t.Errorf("id = %q, %v", id, ok)
	}
}
