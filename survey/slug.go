package survey

import (
	"regexp"
	"strings"
)

var (
	slugNonWord     = regexp.MustCompile(`[^\w\s_]`)
	slugRepeatUnder = regexp.MustCompile(`_{2,}`)
)

// Slugify derives a bibkey from a paper title: lowercased, hyphens and
// whitespace folded to underscores, punctuation stripped, and runs of
// underscores collapsed to one. Two papers with the same slugified title
// collide on the same bibkey by design — callers that need to
// disambiguate must do so before inserting into a DigestTable.
func Slugify(title string) string {
	if title == "" {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(title))
	s = strings.ReplaceAll(s, "-", "_")
	s = slugNonWord.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "_")
	s = slugRepeatUnder.ReplaceAllString(s, "_")
	return s
}
