package domain

// SegmentKind classifies a block of document text
type SegmentKind string

const (
	SegmentKindProse SegmentKind = "prose"
	SegmentKindList  SegmentKind = "list"
	SegmentKindTable SegmentKind = "table"
)

// Segment is a classified, contiguous block of document text.
// Content is the trimmed block exactly as it appears in the source.
type Segment struct {
	Kind    SegmentKind `json:"kind"`
	Content string      `json:"content"`
}

// IsValidSegmentKind reports whether k is one of the known segment kinds
func IsValidSegmentKind(k SegmentKind) bool {
	switch k {
	case SegmentKindProse, SegmentKindList, SegmentKindTable:
		return true
	}
	return false
}
