package decode

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/surveyforge/surveyforge/survey"
)

// citeRegex matches a bracketed citation group such as [bibkey] or
// [bibkey-one,bibkey-two].
var citeRegex = regexp.MustCompile(`\[([^\[\]]+)\]`)

// RewriteCitations renumbers every bracketed bibkey citation across a
// survey's blocks to a 1-based reference index and records the fraction of
// references that ended up actually cited on s.CiteRatio. Bibkeys are
// assigned indices in sorted order so the same survey always gets the same
// numbering regardless of map iteration order.
func RewriteCitations(s *survey.Survey) {
	bibkeys := make([]string, 0, len(s.References))
	for k := range s.References {
		bibkeys = append(bibkeys, k)
	}
	sort.Strings(bibkeys)

	indexOf := make(map[string]int, len(bibkeys))
	citeCount := make(map[string]int, len(bibkeys))
	for i, k := range bibkeys {
		indexOf[normalizeBibkey(k)] = i + 1
	}

	for i := range s.Blocks {
		s.Blocks[i].ContentText = citeRegex.ReplaceAllStringFunc(s.Blocks[i].ContentText, func(match string) string {
			inner := match[1 : len(match)-1]
			return rewriteCiteGroup(inner, indexOf, citeCount)
		})
	}

	s.CiteRatio = citeRatio(bibkeys, citeCount)
}

// rewriteCiteGroup renumbers one comma-separated group of bibkeys into its
// sorted, deduplicated 1-based indices. A bibkey not found in indexOf (a
// stale or malformed reference) is dropped rather than left unresolved. A
// group that resolves to nothing is removed entirely.
func rewriteCiteGroup(inner string, indexOf map[string]int, citeCount map[string]int) string {
	seen := make(map[int]bool)
	var indices []int
	for _, raw := range strings.Split(inner, ",") {
		key := normalizeBibkey(raw)
		idx, ok := indexOf[key]
		if !ok {
			continue
		}
		citeCount[key]++
		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}
	if len(indices) == 0 {
		return ""
	}
	sort.Ints(indices)
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func normalizeBibkey(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")
}

// citeRatio is the fraction of bibkeys that were cited at least once.
func citeRatio(bibkeys []string, citeCount map[string]int) float64 {
	if len(bibkeys) == 0 {
		return 0
	}
	cited := 0
	for _, k := range bibkeys {
		if citeCount[normalizeBibkey(k)] > 0 {
			cited++
		}
	}
	return float64(cited) / float64(len(bibkeys))
}
