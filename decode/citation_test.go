package decode

import (
	"testing"

	"github.com/surveyforge/surveyforge/survey"
)

func newCitationSurvey() *survey.Survey {
	s := survey.NewSurvey("t1", "Citation survey")
	s.References = map[string]survey.Reference{
		"alpha_2020": {Title: "Alpha", Bibkey: "alpha_2020"},
		"beta_2021":  {Title: "Beta", Bibkey: "beta_2021"},
		"gamma_2022": {Title: "Gamma", Bibkey: "gamma_2022"},
	}
	leaf := s.AddChild(0, "Section 1")
	s.Blocks[leaf].ContentText = "Some claim [alpha_2020]. Another claim [beta-2021,alpha_2020]."
	return s
}

func TestRewriteCitationsRenumbersInSortedOrder(t *testing.T) {
	s := newCitationSurvey()
	RewriteCitations(s)

	got := s.Blocks[1].ContentText
	want := "Some claim [1]. Another claim [1,2]."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteCitationsComputesCiteRatio(t *testing.T) {
	s := newCitationSurvey()
	RewriteCitations(s)

	// alpha_2020 and beta_2021 are cited, gamma_2022 is not: 2/3.
	want := 2.0 / 3.0
	if s.CiteRatio != want {
		t.Fatalf("got %v, want %v", s.CiteRatio, want)
	}
}

func TestRewriteCitationsDropsUnknownBibkeys(t *testing.T) {
	s := newCitationSurvey()
	leaf := s.AddChild(0, "Section 2")
	s.Blocks[leaf].ContentText = "Dangling reference [nonexistent_key]."

	RewriteCitations(s)

	if got := s.Blocks[2].ContentText; got != "Dangling reference ." {
		t.Fatalf("got %q", got)
	}
}

func TestRewriteCitationsEmptyReferencesGivesZeroRatio(t *testing.T) {
	s := survey.NewSurvey("t2", "Empty")
	leaf := s.AddChild(0, "Section")
	s.Blocks[leaf].ContentText = "No citations here."

	RewriteCitations(s)

	if s.CiteRatio != 0 {
		t.Fatalf("expected zero ratio, got %v", s.CiteRatio)
	}
}

func TestRewriteCitationsDeduplicatesRepeatedBibkeyInGroup(t *testing.T) {
	s := newCitationSurvey()
	leaf := s.AddChild(0, "Section 3")
	s.Blocks[leaf].ContentText = "Repeat [alpha_2020,alpha-2020]."

	RewriteCitations(s)

	if got := s.Blocks[2].ContentText; got != "Repeat [1]." {
		t.Fatalf("got %q", got)
	}
}
