package analyzer

import "fmt"

// Stage names carried on GenerationError and used by the pipeline's failure
// policy.
const (
	StageProblems  = "problem_identification"
	StageExcerpts  = "excerpt_extraction"
	StageSynthesis = "synthesis"
)

// ProblemArea is a distinct issue or theme identified from the transcript.
// The ID is assigned locally, never by the model.
type ProblemArea struct {
	ID          string    `json:"problem_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Excerpts    []Excerpt `json:"excerpts"`

	// Degraded marks a problem area whose excerpt extraction exhausted its
	// retries. Its excerpt list is empty and the reason is recorded.
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

// Excerpt is a verbatim quote supporting a problem area, tied to one chunk.
type Excerpt struct {
	Quote       string   `json:"quote"`
	Categories  []string `json:"categories"`
	Insight     string   `json:"insight"`
	ChunkNumber int      `json:"chunk_number"`
}

// Synthesis is the narrative summary spanning all identified problem areas.
type Synthesis struct {
	Background       string   `json:"background"`
	ProblemSummaries []string `json:"problem_area_summaries"`
	NextSteps        []string `json:"next_steps"`

	// AutoGenerated marks the mechanical fallback built from problem-area
	// titles when the synthesis stage fails.
	AutoGenerated bool `json:"auto_generated,omitempty"`
}

// GenerationError reports a stage whose model output failed schema validation
// after all retries. LastRaw carries the final raw output for diagnostics.
type GenerationError struct {
	Stage   string
	LastRaw string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed after retries: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
