package transcript

import (
	"fmt"
	"strings"
)

// Format renders chunks as a numbered "Speaker: text" transcript suitable for
// prompting. The number is the chunk_number models are asked to cite.
func Format(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&sb, "[%d] %s: %s\n", c.Number, c.Speaker, c.Text)
	}
	return sb.String()
}

// Window splits a chunk sequence into consecutive windows whose formatted text
// stays within maxTokens, measured by the supplied counter. A single chunk
// larger than the budget gets a window of its own rather than being dropped.
func Window(chunks []Chunk, measure func(string) int, maxTokens int) [][]Chunk {
	if len(chunks) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		return [][]Chunk{chunks}
	}

	var windows [][]Chunk
	var current []Chunk
	budget := 0

	for _, c := range chunks {
		cost := measure(Format([]Chunk{c}))
		if len(current) > 0 && budget+cost > maxTokens {
			windows = append(windows, current)
			current = nil
			budget = 0
		}
		current = append(current, c)
		budget += cost
	}
	if len(current) > 0 {
		windows = append(windows, current)
	}

	return windows
}

// ChunkNumbers returns the set of chunk numbers present in a sequence, used to
// validate model-emitted references.
func ChunkNumbers(chunks []Chunk) map[int]bool {
	set := make(map[int]bool, len(chunks))
	for _, c := range chunks {
		set[c.Number] = true
	}
	return set
}
