package survey

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Attention Is All You Need":    "attention_is_all_you_need",
		"BERT: Pre-training of Deep":   "bert_pre_training_of_deep",
		"  spaced  out  ":              "spaced_out",
		"":                             "",
		"multi---hyphen":               "multi_hyphen",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDigestTableRejectsBibkeyConflict(t *testing.T) {
	dt := NewDigestTable()
	if err := dt.Add(Digest{Title: "a", Bibkeys: []string{"k1", "k2"}}); err != nil {
		t.Fatal(err)
	}
	if err := dt.Add(Digest{Title: "b", Bibkeys: []string{"k2"}}); err != ErrBibkeyConflict {
		t.Fatalf("expected ErrBibkeyConflict, got %v", err)
	}
	if dt.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (the rejected add must not partially apply)", dt.Len())
	}
}

func TestDigestTableLookupAcrossSharedKeys(t *testing.T) {
	dt := NewDigestTable()
	_ = dt.Add(Digest{Title: "merged", Bibkeys: []string{"paper_a", "paper_b"}})
	da, ok := dt.Get("paper_a")
	if !ok {
		t.Fatal("paper_a should resolve")
	}
	db, ok := dt.Get("paper_b")
	if !ok {
		t.Fatal("paper_b should resolve")
	}
	if da.Title != db.Title {
		t.Fatal("both bibkeys should resolve to the same digest group")
	}
}

func TestSurveyAddChildAndLeaves(t *testing.T) {
	s := NewSurvey("task-1", "A Survey")
	c1 := s.AddChild(0, "Section 1")
	c2 := s.AddChild(0, "Section 2")
	_ = s.AddChild(c1, "Section 1.1")

	leaves := s.Leaves()
	leafSet := map[int]bool{}
	for _, l := range leaves {
		leafSet[l] = true
	}
	if leafSet[0] {
		t.Fatal("root has children, should not be a leaf")
	}
	if !leafSet[c2] {
		t.Fatal("Section 2 has no children, should be a leaf")
	}
	if leafSet[c1] {
		t.Fatal("Section 1 has a child, should not be a leaf")
	}
}

func TestSurveyDeepCopyIsIndependent(t *testing.T) {
	s := NewSurvey("task-1", "A Survey")
	s.AddChild(0, "Section 1")
	s.References["k"] = Reference{Title: "t"}
	_ = s.Digests.Add(Digest{Title: "d", Bibkeys: []string{"k"}})

	cp := s.DeepCopy()
	cp.Blocks[0].Title = "mutated"
	cp.References["k"] = Reference{Title: "mutated"}
	cp.Blocks[1].Children = append(cp.Blocks[1].Children, 99)

	if s.Blocks[0].Title == "mutated" {
		t.Fatal("mutating the copy's block must not affect the original")
	}
	if s.References["k"].Title == "mutated" {
		t.Fatal("mutating the copy's reference map must not affect the original")
	}
	if len(s.Blocks[1].Children) != 0 {
		t.Fatal("mutating the copy's Children slice must not affect the original")
	}
}
