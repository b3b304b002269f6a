// Package text classifies raw document text into structural segments and
// splits those segments into bounded chunks for extraction.
package text

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/docextract/internal/domain"
)

const (
	blockSeparator = "\n\n"

	// listRatio and tableRatio are the fractions of lines in a block that
	// must look like list items or table rows for the block to be
	// classified as such.
	listRatio  = 0.7
	tableRatio = 0.7

	// minTablePipes is the number of pipes a line needs to count as a row.
	minTablePipes = 3
)

var (
	listMarker = regexp.MustCompile(`^\s*(\(\w+\)|\d+\.|\*|-)\s+`)
	columnGap  = regexp.MustCompile(`\s{2,}`)
)

// Segment splits text on blank lines and classifies each non-empty block as
// a list, a table or prose. Blocks are returned in source order.
func Segment(text string) []domain.Segment {
	blocks := strings.Split(text, blockSeparator)
	segments := make([]domain.Segment, 0, len(blocks))

	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Kind:    classify(block),
			Content: block,
		})
	}

	return segments
}

func classify(block string) domain.SegmentKind {
	lines := strings.Split(block, "\n")
	if len(lines) < 2 {
		return domain.SegmentKindProse
	}

	if fraction(lines, isListLine) > listRatio {
		return domain.SegmentKindList
	}

	if fraction(lines, isPipeRow) > tableRatio || fraction(lines, hasColumnGap) > tableRatio {
		return domain.SegmentKindTable
	}

	return domain.SegmentKindProse
}

func fraction(lines []string, match func(string) bool) float64 {
	n := 0
	for _, line := range lines {
		if match(line) {
			n++
		}
	}
	return float64(n) / float64(len(lines))
}

func isListLine(line string) bool {
	return listMarker.MatchString(line)
}

func isPipeRow(line string) bool {
	return strings.Count(line, "|") >= minTablePipes
}

func hasColumnGap(line string) bool {
	return columnGap.MatchString(line)
}
