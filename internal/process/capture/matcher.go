package capture

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher is a predicate over a single console line.
type Matcher interface {
	Match(line string) bool
	// String describes the pattern for error messages.
	String() string
}

type containsMatcher struct {
	text string
}

// Contains matches lines that contain text as a literal substring.
func Contains(text string) Matcher {
	return containsMatcher{text: text}
}

func (m containsMatcher) Match(line string) bool { return strings.Contains(line, m.text) }
func (m containsMatcher) String() string         { return fmt.Sprintf("%q", m.text) }

type regexpMatcher struct {
	re *regexp.Regexp
}

// Regexp matches lines in which expr finds a match.
func Regexp(expr string) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return regexpMatcher{re: re}, nil
}

func (m regexpMatcher) Match(line string) bool { return m.re.MatchString(line) }
func (m regexpMatcher) String() string         { return "/" + m.re.String() + "/" }

type globMatcher struct {
	pattern string
	g       glob.Glob
}

// Glob matches whole lines against a shell-style glob such as "*ready for connections*".
func Glob(pattern string) (Matcher, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return globMatcher{pattern: pattern, g: g}, nil
}

func (m globMatcher) Match(line string) bool { return m.g.Match(line) }
func (m globMatcher) String() string         { return "glob(" + m.pattern + ")" }

// ParseMatcher builds a Matcher from a kind name: "contains" (or ""),
// "regexp" or "glob".
func ParseMatcher(kind, pattern string) (Matcher, error) {
	switch strings.ToLower(kind) {
	case "", "contains":
		return Contains(pattern), nil
	case "regexp", "regex":
		return Regexp(pattern)
	case "glob":
		return Glob(pattern)
	default:
		return nil, fmt.Errorf("unknown matcher kind %q (supported: contains, regexp, glob)", kind)
	}
}
