package survey

import "github.com/microcosm-cc/bluemonday"

var stripTagsPolicy = bluemonday.StrictPolicy()

// Sanitize strips HTML/markup from scraped reference text, leaving plain
// text suitable for prompt assembly. Crawled pages routinely carry stray
// markup that a strict policy removes entirely rather than escaping.
func Sanitize(raw string) string {
	return stripTagsPolicy.Sanitize(raw)
}
