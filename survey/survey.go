package survey

import "time"

// Block is one node of a survey's outline/content tree. Every block lives
// in Survey.Blocks at a fixed Index; ParentIndex addresses its parent the
// same way, -1 for the root. Addressing by slice index instead of pointer
// means the same block can carry both its outline role (OutlineText) and
// its content role (ContentText) without a parallel tree and without
// back-pointers from child to parent needing a weak reference: copying a
// Survey's tree means copying its Blocks slice and each block's Children
// slice (see DeepCopy).
type Block struct {
	Index          int
	ParentIndex    int
	Title          string
	DigestGuidance string
	OutlineText    string
	ContentText    string
	Qualified      bool
	Children       []int
}

// Survey is the mutable job payload carried through the generation
// pipeline: a free-form title, the reference documents keyed by bibkey,
// the outline/content arena, the digest table, and the refinement state
// accumulated by the last iteration.
type Survey struct {
	TaskID     string
	Title      string
	References map[string]Reference
	Blocks     []Block
	Digests    *DigestTable

	CiteRatio    float64
	RefineCount  int
	BestOf       int
	CapturedAt   time.Time
}

// NewSurvey returns an empty Survey seeded with a root block at index 0.
func NewSurvey(taskID, title string) *Survey {
	return &Survey{
		TaskID:     taskID,
		Title:      title,
		References: make(map[string]Reference),
		Blocks:     []Block{{Index: 0, ParentIndex: -1, Title: title}},
		Digests:    NewDigestTable(),
	}
}

// Root returns the survey's root block. A Survey always has at least one
// block (index 0, ParentIndex -1), so Root never needs an ok return.
func (s *Survey) Root() *Block { return &s.Blocks[0] }

// AddChild appends a new block as a child of parentIndex and returns its
// index. parentIndex must address an existing block.
func (s *Survey) AddChild(parentIndex int, title string) int {
	idx := len(s.Blocks)
	s.Blocks = append(s.Blocks, Block{Index: idx, ParentIndex: parentIndex, Title: title})
	s.Blocks[parentIndex].Children = append(s.Blocks[parentIndex].Children, idx)
	return idx
}

// Leaves returns the indices of every block with no children, in index
// order. Every outline leaf is expected to correspond to exactly one
// content leaf, since both roles live on the same Block.
func (s *Survey) Leaves() []int {
	var out []int
	for _, b := range s.Blocks {
		if len(b.Children) == 0 {
			out = append(out, b.Index)
		}
	}
	return out
}

// Snapshot is a point-in-time, self-contained copy of a Survey suitable
// for transport between pipeline stages or storage in a result record.
type Snapshot struct {
	Survey     Survey
	CapturedAt time.Time
}

// DeepCopy returns a structural copy of s: the Blocks slice, References
// map, and Digests table are all copied so that mutating the result never
// races a concurrent mutation of s. This is the copy every node configured
// with put-deep-copy must use on fan-out.
func (s *Survey) DeepCopy() *Survey {
	cp := *s
	cp.Blocks = make([]Block, len(s.Blocks))
	for i, b := range s.Blocks {
		cb := b
		cb.Children = append([]int(nil), b.Children...)
		cp.Blocks[i] = cb
	}
	cp.References = make(map[string]Reference, len(s.References))
	for k, v := range s.References {
		cp.References[k] = v
	}
	if s.Digests != nil {
		dt := NewDigestTable()
		for _, d := range s.Digests.All() {
			d.Bibkeys = append([]string(nil), d.Bibkeys...)
			_ = dt.Add(d)
		}
		cp.Digests = dt
	}
	return &cp
}
