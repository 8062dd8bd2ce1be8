package diagram

import (
	"strings"
)

// scanner walks a single statement.
type scanner struct {
	src string
	pos int
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) rest() string { return s.src[s.pos:] }

func (s *scanner) skipSpace() {
	for !s.done() && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

func isIDByte(c byte) bool {
	return c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

// shapes maps node shape openers to their closers, longest opener first.
var shapes = []struct{ open, close string }{
	{"((", "))"},
	{"([", "])"},
	{"[[", "]]"},
	{"[(", ")]"},
	{"{{", "}}"},
	{"[/", "/]"},
	{"[\\", "\\]"},
	{"[", "]"},
	{"(", ")"},
	{"{", "}"},
	{">", "]"},
}

// nodeRef reads an ID with an optional shaped label.
func (s *scanner) nodeRef() (id, label string, ok bool) {
	start := s.pos
	for !s.done() && isIDByte(s.src[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return "", "", false
	}
	id = s.src[start:s.pos]

	for _, sh := range shapes {
		if !strings.HasPrefix(s.rest(), sh.open) {
			continue
		}
		s.pos += len(sh.open)
		body := s.rest()
		if strings.HasPrefix(body, `"`) {
			end := strings.Index(body[1:], `"`)
			if end < 0 {
				return "", "", false
			}
			label = body[1 : end+1]
			s.pos += end + 2
			if !strings.HasPrefix(s.rest(), sh.close) {
				return "", "", false
			}
		} else {
			end := strings.Index(body, sh.close)
			if end < 0 {
				return "", "", false
			}
			label = body[:end]
			s.pos += end
		}
		s.pos += len(sh.close)
		label = strings.TrimSpace(label)
		if label == "" {
			label = id
		}
		return id, unescapeLabel(label), true
	}
	return id, "", true
}

// arrows lists accepted edge operators, longest first.
var arrows = []string{"-.->", "==>", "-->", "---", "--o", "--x"}

// arrow reads an edge operator with an optional |label| or "-- text -->"
// label.
func (s *scanner) arrow() (label string, ok bool) {
	rest := s.rest()
	if strings.HasPrefix(rest, "-- ") || strings.HasPrefix(rest, "== ") {
		closer := "-->"
		if rest[0] == '=' {
			closer = "==>"
		}
		end := strings.Index(rest[3:], closer)
		if end < 0 {
			return "", false
		}
		label = strings.TrimSpace(rest[3 : 3+end])
		s.pos += 3 + end + len(closer)
		return unescapeLabel(unquote(label)), true
	}

	matched := false
	for _, a := range arrows {
		if strings.HasPrefix(rest, a) {
			s.pos += len(a)
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}
	s.skipSpace()
	if strings.HasPrefix(s.rest(), "|") {
		end := strings.Index(s.rest()[1:], "|")
		if end < 0 {
			return "", false
		}
		label = strings.TrimSpace(s.rest()[1 : end+1])
		s.pos += end + 2
	}
	return unescapeLabel(unquote(label)), true
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
