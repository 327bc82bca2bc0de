package survey

import "errors"

// ErrBibkeyConflict is returned by DigestTable.Add when a bibkey already
// belongs to a different digest group than the one being inserted.
var ErrBibkeyConflict = errors.New("survey: bibkey already belongs to a different digest")

// Digest is the condensed per-paper (or per-paper-group) summary used to
// ground generated content; one digest may be shared by several bibkeys
// that were merged during reference deduplication.
type Digest struct {
	Title   string
	Bibkeys []string
	Summary string
}

// DigestTable is an identity-indexed list of digests plus a bibkey-to-index
// lookup, the Go rendering of a multi-key dictionary: several bibkeys can
// resolve to the same digest by index, but a bibkey may only ever belong
// to one digest group. Indexing by slice position rather than nesting
// digests inside a map keyed by a set-of-bibkeys keeps equality and
// iteration simple and makes copying a digest reference as cheap as
// copying an int.
type DigestTable struct {
	digests []Digest
	byKey   map[string]int
}

// NewDigestTable returns an empty table.
func NewDigestTable() *DigestTable {
	return &DigestTable{byKey: make(map[string]int)}
}

// Add inserts d and indexes it under every bibkey in d.Bibkeys. It returns
// ErrBibkeyConflict without modifying the table if any of those bibkeys is
// already registered to a different digest.
func (t *DigestTable) Add(d Digest) error {
	for _, k := range d.Bibkeys {
		if _, exists := t.byKey[k]; exists {
			return ErrBibkeyConflict
		}
	}
	idx := len(t.digests)
	t.digests = append(t.digests, d)
	for _, k := range d.Bibkeys {
		t.byKey[k] = idx
	}
	return nil
}

// Get returns the digest registered under bibkey, if any.
func (t *DigestTable) Get(bibkey string) (Digest, bool) {
	idx, ok := t.byKey[bibkey]
	if !ok {
		return Digest{}, false
	}
	return t.digests[idx], true
}

// Len returns the number of distinct digest groups (not bibkeys).
func (t *DigestTable) Len() int { return len(t.digests) }

// Bibkeys returns every bibkey registered across every digest group.
func (t *DigestTable) Bibkeys() []string {
	out := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		out = append(out, k)
	}
	return out
}

// All returns every digest group in insertion order.
func (t *DigestTable) All() []Digest {
	out := make([]Digest, len(t.digests))
	copy(out, t.digests)
	return out
}
