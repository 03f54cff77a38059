package transcript

import (
	"bufio"
	"errors"
	"regexp"
	"strings"
)

// ErrMalformedTranscript is returned when a non-empty input yields no usable
// caption blocks. Empty input is not malformed — it parses to zero chunks.
var ErrMalformedTranscript = errors.New("transcript: no caption blocks could be parsed")

var (
	cueTimingRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[.,]\d{3}\s+-->\s+\d{2}:\d{2}:\d{2}[.,]\d{3}`)
	indexLineRe = regexp.MustCompile(`^\d+$`)
	speakerRe   = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 .'_-]{0,63}):\s*(.*)$`)
)

// Parse converts raw captioned-subtitle text into an ordered chunk sequence.
//
// A caption block is an optional numeric index line, a cue timing line
// (HH:MM:SS.mmm --> HH:MM:SS.mmm), and one or more text lines. A leading
// "Name:" on the first text line is extracted as the speaker; continuation
// lines are joined with single spaces. Blocks whose text comes out empty are
// dropped. Parsing is pure and idempotent.
func Parse(raw string) ([]Chunk, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var chunks []Chunk
	var block []string
	inCue := false

	flush := func() {
		if c, ok := buildChunk(block, len(chunks)+1); ok {
			chunks = append(chunks, c)
		}
		block = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			flush()
			inCue = false
		case line == "WEBVTT" || strings.HasPrefix(line, "WEBVTT "):
			// file header, not content
		case indexLineRe.MatchString(line) && !inCue:
			// cue index preceding the timing line
		case cueTimingRe.MatchString(line):
			flush()
			inCue = true
		case inCue:
			block = append(block, line)
		default:
			// free text outside any cue (NOTE sections, garbage) is discarded
		}
	}
	flush()

	if len(chunks) == 0 {
		return nil, ErrMalformedTranscript
	}
	return chunks, nil
}

// buildChunk assembles one caption block's text lines into a Chunk.
func buildChunk(lines []string, number int) (Chunk, bool) {
	if len(lines) == 0 {
		return Chunk{}, false
	}

	speaker := UnknownSpeaker
	first := lines[0]
	if m := speakerRe.FindStringSubmatch(first); m != nil {
		speaker = strings.TrimSpace(m[1])
		first = m[2]
	}

	parts := make([]string, 0, len(lines))
	if first != "" {
		parts = append(parts, first)
	}
	for _, l := range lines[1:] {
		parts = append(parts, l)
	}

	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return Chunk{}, false
	}

	return Chunk{Number: number, Speaker: speaker, Text: text}, true
}
