// internal/scraper/embedded.go
package scraper

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
)

// NextDataSelector selects the Next.js page payload.
const NextDataSelector = "script#__NEXT_DATA__"

// ExtractScriptJSON decodes the JSON body of the first script matching selector.
func ExtractScriptJSON(doc *goquery.Document, selector string, v interface{}) error {
	script := doc.Find(selector).First()
	if script.Length() == 0 {
		return fmt.Errorf("script %q not found", selector)
	}
	text := strings.TrimSpace(script.Text())
	if text == "" {
		return fmt.Errorf("script %q is empty", selector)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("failed to parse JSON in %q: %w", selector, err)
	}
	return nil
}

// ExtractAssignedJSON finds `<variable> = {...}` inside any script on the page,
// e.g. window.__INITIAL__DATA__, and decodes the object literal into v.
// Literals that are not strict JSON are retried as JSON5.
func ExtractAssignedJSON(doc *goquery.Document, variable string, v interface{}) error {
	assign := regexp.MustCompile(regexp.QuoteMeta(variable) + `\s*=\s*`)

	var literal string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		loc := assign.FindStringIndex(text)
		if loc == nil {
			return true
		}
		literal = balancedLiteral(text[loc[1]:])
		return literal == ""
	})
	if literal == "" {
		return fmt.Errorf("assignment to %s not found", variable)
	}

	if err := json.Unmarshal([]byte(literal), v); err != nil {
		if err5 := json5.Unmarshal([]byte(literal), v); err5 != nil {
			return fmt.Errorf("failed to parse %s: %w", variable, err)
		}
	}
	return nil
}

// balancedLiteral returns the leading {...} or [...] of s, honoring strings and escapes.
func balancedLiteral(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return ""
	}

	depth := 0
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// CollectSlugs walks decoded JSON and gathers the string values of key found on
// nodes that do not also carry skipKey (directory nodes list their children under
// skipKey; only leaves are stores). Object keys are visited in sorted order so the
// result is stable; repeats are dropped.
func CollectSlugs(tree interface{}, key, skipKey string) []string {
	seen := make(map[string]bool)
	var out []string

	var walk func(node interface{})
	walk = func(node interface{}) {
		switch n := node.(type) {
		case map[string]interface{}:
			if slug, ok := n[key].(string); ok && slug != "" {
				if _, isDir := n[skipKey]; !isDir && !seen[slug] {
					seen[slug] = true
					out = append(out, slug)
				}
			}
			keys := make([]string, 0, len(n))
			for k := range n {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(n[k])
			}
		case []interface{}:
			for _, child := range n {
				walk(child)
			}
		}
	}
	walk(tree)
	return out
}

// Lookup follows a dotted path ("props.pageProps.locations") through decoded JSON.
func Lookup(tree interface{}, path string) (interface{}, bool) {
	node := tree
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if node, ok = m[part]; !ok {
			return nil, false
		}
	}
	return node, true
}
