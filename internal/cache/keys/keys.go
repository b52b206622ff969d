// Package keys builds stable cache keys for resolved STAC searches.
package keys

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
)

const prefix = "stac"

// Search returns "stac:<provider>:<collections>:p=<hex64>" for a request.
// Collection order, whitespace in the datetime and the page token do not
// change the key; everything else that alters the result set does.
func Search(provider string, p model.SearchParams) string {
	prov := sanitize(strings.ToLower(strings.TrimSpace(provider)))

	cols := make([]string, 0, len(p.Collections))
	for _, c := range p.Collections {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	slices.Sort(cols)
	cols = slices.Compact(cols)

	colText := sanitize(strings.Join(cols, ","))
	const maxColTextLen = 120
	if len(colText) > maxColTextLen {
		colText = colText[:maxColTextLen]
	}

	return fmt.Sprintf("%s:%s:%s:p=%016x", prefix, prov, colText, xxhash.Sum64String(canonical(p, cols)))
}

// IsSearchKey reports whether k has the shape produced by Search.
func IsSearchKey(k string) bool {
	if !strings.HasPrefix(k, prefix+":") {
		return false
	}
	i := strings.LastIndex(k, ":p=")
	if i < 0 || len(k)-i-3 != 16 {
		return false
	}
	for _, r := range k[i+3:] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func canonical(p model.SearchParams, cols []string) string {
	q := p.Clone()
	q.Collections = cols
	q.Token = ""
	q.Datetime = collapseASCIIWhitespace(q.Datetime)
	if len(q.IDs) > 0 {
		slices.Sort(q.IDs)
	}
	// map keys are emitted sorted by encoding/json
	b, err := json.Marshal(q)
	if err != nil {
		return fmt.Sprintf("%#v", q)
	}
	return string(b)
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == ',' || r == '.':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
