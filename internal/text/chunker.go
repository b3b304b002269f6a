package text

import (
	"strings"

	"github.com/cloo-solutions/docextract/internal/domain"
)

// DefaultMaxChunkWords is the prose word budget used when none is configured.
const DefaultMaxChunkWords = 256

const sentenceSeparator = ". "

// Chunker splits classified segments into chunks sized for one model call.
type Chunker struct {
	// MaxWords bounds prose chunks by whitespace-delimited word count.
	// A single sentence longer than the budget is kept whole.
	MaxWords int
}

// NewChunker returns a Chunker with the given prose word budget, falling
// back to DefaultMaxChunkWords for non-positive values.
func NewChunker(maxWords int) *Chunker {
	if maxWords <= 0 {
		maxWords = DefaultMaxChunkWords
	}
	return &Chunker{MaxWords: maxWords}
}

// Chunk flattens segments into an ordered chunk list. Chunks appear in
// segment order, then in order within each segment.
func (c *Chunker) Chunk(segments []domain.Segment) []string {
	chunks := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg.Kind {
		case domain.SegmentKindList:
			chunks = append(chunks, chunkList(seg.Content)...)
		case domain.SegmentKindTable:
			chunks = append(chunks, chunkTable(seg.Content)...)
		default:
			chunks = append(chunks, c.chunkProse(seg.Content)...)
		}
	}
	return chunks
}

// chunkList emits one chunk per list item. An item runs from its marker to
// the next marker line or the end of the segment. Lines ahead of the first
// marker are folded into the first item. A marker with no text yields no chunk.
func chunkList(content string) []string {
	var (
		items    []string
		current  []string
		preamble []string
		started  bool
	)

	flush := func() {
		if !started {
			return
		}
		item := strings.TrimSpace(strings.Join(current, " "))
		if item != "" {
			items = append(items, item)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		if loc := listMarker.FindStringIndex(line); loc != nil {
			flush()
			if !started {
				started = true
				current = append(current, preamble...)
			}
			current = append(current, strings.TrimSpace(line[loc[1]:]))
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if started {
			current = append(current, trimmed)
		} else {
			preamble = append(preamble, trimmed)
		}
	}
	flush()

	if !started && len(preamble) > 0 {
		items = append(items, strings.Join(preamble, " "))
	}

	return items
}

func chunkTable(content string) []string {
	var rows []string
	for _, line := range strings.Split(content, "\n") {
		if row := strings.TrimSpace(line); row != "" {
			rows = append(rows, row)
		}
	}
	return rows
}

// chunkProse packs sentences greedily into chunks of at most MaxWords words.
// Paragraphs never share a chunk.
func (c *Chunker) chunkProse(content string) []string {
	maxWords := c.MaxWords
	if maxWords <= 0 {
		maxWords = DefaultMaxChunkWords
	}

	var chunks []string
	for _, paragraph := range strings.Split(content, blockSeparator) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		var (
			current []string
			words   int
		)
		sentences := strings.Split(paragraph, sentenceSeparator)
		for i, sentence := range sentences {
			// Restore the separator consumed by the split.
			if i < len(sentences)-1 {
				sentence += "."
			}
			n := len(strings.Fields(sentence))

			if words > 0 && words+n > maxWords {
				chunks = append(chunks, strings.Join(current, " "))
				current = current[:0]
				words = 0
			}
			if n == 0 {
				continue
			}
			current = append(current, strings.TrimSpace(sentence))
			words += n
		}
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}
	}

	return chunks
}

// WordCount returns the whitespace-delimited word count of s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
