package transcript

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const threeTurnVTT = `WEBVTT

1
00:00:01.000 --> 00:00:04.500
Sarah: Thanks for taking the time to talk with me today.

2
00:00:05.000 --> 00:00:09.200
Daniel: Happy to. The onboarding flow has been on my mind a lot.

3
00:00:10.000 --> 00:00:15.800
Sarah: Let's start there. What was the first thing that tripped you up?
`

func TestParse_ThreeCaptionBlocks(t *testing.T) {
	chunks, err := Parse(threeTurnVTT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.Number != i+1 {
			t.Errorf("chunk %d: number = %d, want %d", i, c.Number, i+1)
		}
	}
	if chunks[0].Speaker != "Sarah" {
		t.Errorf("chunk 1 speaker = %q, want Sarah", chunks[0].Speaker)
	}
	if chunks[1].Speaker != "Daniel" {
		t.Errorf("chunk 2 speaker = %q, want Daniel", chunks[1].Speaker)
	}
	if chunks[0].Text != "Thanks for taking the time to talk with me today." {
		t.Errorf("chunk 1 text = %q", chunks[0].Text)
	}
}

func TestParse_Idempotent(t *testing.T) {
	first, err := Parse(threeTurnVTT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Parse(threeTurnVTT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("parsing is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestParse_ContinuationLinesJoined(t *testing.T) {
	raw := `1
00:00:01.000 --> 00:00:04.000
Maya: The export button was
buried three menus deep
and nothing labeled it.
`
	chunks, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	want := "The export button was buried three menus deep and nothing labeled it."
	if chunks[0].Text != want {
		t.Errorf("text = %q, want %q", chunks[0].Text, want)
	}
	if chunks[0].Speaker != "Maya" {
		t.Errorf("speaker = %q, want Maya", chunks[0].Speaker)
	}
}

func TestParse_MissingSpeakerIsUnknown(t *testing.T) {
	raw := `1
00:00:01.000 --> 00:00:02.000
[inaudible] so we just gave up on it
`
	chunks, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Speaker != UnknownSpeaker {
		t.Errorf("speaker = %q, want %q", chunks[0].Speaker, UnknownSpeaker)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   \n\n  "} {
		chunks, err := Parse(raw)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", raw, err)
		}
		if len(chunks) != 0 {
			t.Errorf("Parse(%q): expected no chunks, got %d", raw, len(chunks))
		}
	}
}

func TestParse_MalformedInput(t *testing.T) {
	raw := "this is just prose with no caption structure\nstill prose\n"
	_, err := Parse(raw)
	if !errors.Is(err, ErrMalformedTranscript) {
		t.Fatalf("expected ErrMalformedTranscript, got %v", err)
	}
}

func TestParse_DropsEmptyBlocks(t *testing.T) {
	raw := `1
00:00:01.000 --> 00:00:02.000
Sarah:

2
00:00:03.000 --> 00:00:04.000
Sarah: Something real this time.
`
	chunks, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk (empty block dropped), got %d", len(chunks))
	}
	if chunks[0].Number != 1 {
		t.Errorf("renumbered chunk = %d, want 1", chunks[0].Number)
	}
	if chunks[0].Text != "Something real this time." {
		t.Errorf("text = %q", chunks[0].Text)
	}
}

func TestParse_NumericSpeechKept(t *testing.T) {
	raw := `1
00:00:01.000 --> 00:00:02.000
Daniel: It took
42
clicks to get anywhere.
`
	chunks, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "It took 42 clicks to get anywhere." {
		t.Errorf("text = %q", chunks[0].Text)
	}
}

func TestFormat_NumbersAndSpeakers(t *testing.T) {
	chunks := []Chunk{
		{Number: 1, Speaker: "Sarah", Text: "Hello."},
		{Number: 2, Speaker: "Daniel", Text: "Hi."},
	}
	got := Format(chunks)
	if !strings.Contains(got, "[1] Sarah: Hello.") || !strings.Contains(got, "[2] Daniel: Hi.") {
		t.Errorf("unexpected format output:\n%s", got)
	}
}

func TestWindow_SplitsOnBudget(t *testing.T) {
	chunks := []Chunk{
		{Number: 1, Speaker: "A", Text: "one two three"},
		{Number: 2, Speaker: "B", Text: "four five six"},
		{Number: 3, Speaker: "A", Text: "seven eight nine"},
	}
	measure := func(s string) int { return len(strings.Fields(s)) }

	// Each formatted chunk measures 5 fields; budget 10 fits two per window.
	windows := Window(chunks, measure, 10)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if len(windows[0]) != 2 || len(windows[1]) != 1 {
		t.Errorf("window sizes = %d,%d, want 2,1", len(windows[0]), len(windows[1]))
	}

	// A budget smaller than any single chunk still yields one chunk per window.
	windows = Window(chunks, measure, 1)
	if len(windows) != 3 {
		t.Fatalf("expected 3 single-chunk windows, got %d", len(windows))
	}
}

func TestWindow_NoBudgetSingleWindow(t *testing.T) {
	chunks := []Chunk{{Number: 1, Speaker: "A", Text: "hi"}}
	windows := Window(chunks, func(string) int { return 1 }, 0)
	if len(windows) != 1 || len(windows[0]) != 1 {
		t.Fatalf("expected single window passthrough, got %+v", windows)
	}
}
