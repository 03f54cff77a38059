// Package tokens measures text size in model token units for prompt budgeting
// and result metadata. Counting never fails: when the tiktoken encoding cannot
// be loaded the counter degrades to whitespace-field counting, and every count
// is labeled with the mode that produced it.
package tokens

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/fieldnote/insight/internal/transcript"
)

// Mode identifies which tokenization scheme produced a count.
type Mode string

const (
	ModeTiktoken   Mode = "tiktoken"
	ModeWhitespace Mode = "whitespace"
)

const encodingName = "cl100k_base"

type Counter struct {
	enc  *tiktoken.Tiktoken
	mode Mode
}

// NewCounter builds a counter backed by the cl100k tiktoken encoding, falling
// back to whitespace counting when the encoding is unavailable (e.g. the BPE
// data cannot be loaded in an offline environment).
func NewCounter() *Counter {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return &Counter{mode: ModeWhitespace}
	}
	return &Counter{enc: enc, mode: ModeTiktoken}
}

// NewWhitespaceCounter forces the fallback mode. Used by tests and as a
// deterministic default where the BPE data is known to be absent.
func NewWhitespaceCounter() *Counter {
	return &Counter{mode: ModeWhitespace}
}

// Mode reports which scheme this counter uses.
func (c *Counter) Mode() Mode {
	return c.mode
}

// Count returns the token count for a single string.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.mode == ModeTiktoken {
		return len(c.enc.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

// CountChunks sums token counts across a chunk sequence's text.
func (c *Counter) CountChunks(chunks []transcript.Chunk) int {
	total := 0
	for _, ch := range chunks {
		total += c.Count(ch.Text)
	}
	return total
}
