package survey

// Reference is one source document gathered for a survey, keyed by its
// slugified bibkey. RawText is the sanitised, scraped full text; URL is
// the document's origin for citation rendering.
type Reference struct {
	Title   string
	Bibkey  string
	RawText string
	URL     string
}
