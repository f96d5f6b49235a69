package condition

import (
	"strings"

	"golang.org/x/net/html"
)

// StripTags removes markup tags and comments from s.
// Text, including character references, is kept verbatim.
func StripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}
