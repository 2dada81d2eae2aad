package walker

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ignoreRule is one compiled .gitignore line.
type ignoreRule struct {
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
}

// Ignore matches slash-separated relative paths against gitignore patterns.
// The last matching rule wins, so a later "!pattern" re-includes a path.
type Ignore struct {
	rules []ignoreRule
}

// ParseIgnore compiles gitignore-syntax lines. Blank lines and comments are
// skipped.
func ParseIgnore(lines []string) *Ignore {
	ig := &Ignore{}
	for _, line := range lines {
		ig.add(line)
	}
	return ig
}

// LoadIgnore reads path as a gitignore file. A missing file yields nil and
// no error.
func LoadIgnore(path string) (*Ignore, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseIgnore(lines), nil
}

func (ig *Ignore) add(p string) {
	p = strings.TrimRight(p, " \t\r")
	if p == "" || strings.HasPrefix(p, "#") {
		return
	}
	var r ignoreRule
	switch {
	case strings.HasPrefix(p, `\#`), strings.HasPrefix(p, `\!`):
		p = p[1:]
	case strings.HasPrefix(p, "!"):
		r.negate = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		r.anchored = true
		p = p[1:]
	}
	if strings.Contains(p, "/") && !strings.HasPrefix(p, "**/") {
		r.anchored = true
	}
	if p == "" {
		return
	}
	r.re = regexp.MustCompile("^" + globToRegex(p) + "$")
	ig.rules = append(ig.rules, r)
}

// Match reports whether rel (relative to the ignore file's directory) is
// ignored. A nil Ignore matches nothing.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	if ig == nil {
		return false
	}
	ignored := false
	for _, r := range ig.rules {
		if r.match(rel, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r ignoreRule) match(rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")
	if r.anchored {
		if r.re.MatchString(rel) {
			return !r.dirOnly || isDir
		}
		// A matched directory also covers everything below it.
		for i := 1; i < len(parts); i++ {
			if r.re.MatchString(strings.Join(parts[:i], "/")) {
				return true
			}
		}
		return false
	}
	for i, part := range parts {
		if !r.re.MatchString(part) {
			continue
		}
		last := i == len(parts)-1
		if !last || !r.dirOnly || isDir {
			return true
		}
	}
	return !r.dirOnly && r.re.MatchString(rel)
}

func globToRegex(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '*':
			if i+1 < len(p) && p[i+1] == '*' {
				if i+2 < len(p) && p[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
				} else {
					b.WriteString(".*")
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			j := strings.IndexByte(p[i:], ']')
			if j < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := p[i : i+j+1]
			if strings.HasPrefix(class, "[!") {
				class = "[^" + class[2:]
			}
			b.WriteString(class)
			i += j
		case '\\':
			if i+1 < len(p) {
				i++
				b.WriteString(regexp.QuoteMeta(string(p[i])))
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
