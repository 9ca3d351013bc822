package notes

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ExtensionRule maps titles matching TitleRegex to a file extension.
type ExtensionRule struct {
	TitleRegex string `yaml:"title_regex"`
	Extension  string `yaml:"extension"`
}

// Rules is a compiled, ordered list of extension rules. The first matching
// rule wins.
type Rules []compiledRule

type compiledRule struct {
	re        *regexp.Regexp
	extension string
}

// CompileRules compiles rules in order.
func CompileRules(rules []ExtensionRule) (Rules, error) {
	out := make(Rules, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.TitleRegex)
		if err != nil {
			return nil, fmt.Errorf("notes: title_extension_map[%d]: %w", i, err)
		}
		out = append(out, compiledRule{re: re, extension: r.Extension})
	}
	return out, nil
}

// Extension returns the extension (with leading dot) for title, or "".
func (r Rules) Extension(title string) string {
	for _, rule := range r {
		if rule.re.MatchString(title) {
			return "." + rule.extension
		}
	}
	return ""
}

func validFilenameRune(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.ContainsRune("-_.() ", c)
}

// MaxBaseBytes bounds the title part of a filename so that the full name,
// with " (id)" and the extension, stays under the usual 255 byte limit.
const MaxBaseBytes = 200

// Filename derives the on-disk name of a note: the title stripped to
// letters, digits, space and -_.() and cut to MaxBaseBytes, then " (id)",
// then the extension of the first matching rule.
func Filename(id, title string, rules Rules) string {
	var b strings.Builder
	for _, c := range title {
		if !validFilenameRune(c) {
			continue
		}
		if b.Len()+utf8.RuneLen(c) > MaxBaseBytes {
			break
		}
		b.WriteRune(c)
	}
	return b.String() + " (" + id + ")" + rules.Extension(title)
}

var parenToken = regexp.MustCompile(`\(([^()]*)\)`)

// IDFromFilename returns the last parenthesized token of the base name of
// path, which is where Filename places the note id.
func IDFromFilename(path string) (string, bool) {
	matches := parenToken.FindAllStringSubmatch(filepath.Base(path), -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1][1], true
}
