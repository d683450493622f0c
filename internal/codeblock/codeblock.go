// Package codeblock pulls fenced code out of assistant replies.
package codeblock

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultLang is the fence tag assistant replies use for executable code.
const DefaultLang = "go"

var (
	patternsMu sync.Mutex
	patterns   = map[string]*regexp.Regexp{}
)

// pattern returns the compiled fence matcher for lang.
func pattern(lang string) *regexp.Regexp {
	patternsMu.Lock()
	defer patternsMu.Unlock()

	if re, ok := patterns[lang]; ok {
		return re
	}
	re := regexp.MustCompile("(?s)```" + regexp.QuoteMeta(lang) + "(.*?)```")
	patterns[lang] = re
	return re
}

// Extract returns the trimmed body of the first fenced block tagged lang.
// An empty lang means DefaultLang. ok is false when there is no such block.
//
//	Extract("Here:\n```go\nfmt.Println(1)\n```", "") → "fmt.Println(1)", true
func Extract(text, lang string) (code string, ok bool) {
	if lang == "" {
		lang = DefaultLang
	}
	m := pattern(lang).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
