package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldnote/insight/internal/analyzer"
	"github.com/fieldnote/insight/internal/transcript"
)

// Stage is a pipeline state. A run moves strictly forward through the stages;
// Failed is terminal and reachable from any of them.
type Stage string

const (
	StageProblemIdentification Stage = "PROBLEM_IDENTIFICATION"
	StageExcerptExtraction     Stage = "EXCERPT_EXTRACTION"
	StageSynthesis             Stage = "SYNTHESIS"
	StageDone                  Stage = "DONE"
	StageFailed                Stage = "FAILED"
)

// Warning codes attached to a result's metadata. Every degraded or dropped
// element leaves one of these behind.
const (
	WarnExcerptExtractionFailed = "excerpt_extraction_failed"
	WarnReferentialIntegrity    = "referential_integrity"
	WarnFallbackSynthesis       = "fallback_synthesis"
)

type Warning struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProblemID string `json:"problem_id,omitempty"`
}

// Metadata carries counts recomputed at assembly time, never trusted from
// upstream stages.
type Metadata struct {
	TranscriptTokens   int    `json:"transcript_length"`
	TokenMode          string `json:"token_mode"`
	ProblemAreasCount  int    `json:"problem_areas_count"`
	ExcerptsTotalCount int    `json:"excerpts_total_count"`
}

// AnalysisResult is the aggregate produced by one pipeline run. It is built
// once, inside the run, and handed out immutable.
type AnalysisResult struct {
	Transcript   []transcript.Chunk     `json:"transcript"`
	ProblemAreas []analyzer.ProblemArea `json:"problem_areas"`
	Synthesis    analyzer.Synthesis     `json:"synthesis"`
	Metadata     Metadata               `json:"metadata"`
	Warnings     []Warning              `json:"warnings,omitempty"`
}

// RequestMeta is opaque pass-through metadata persisted alongside a result.
type RequestMeta struct {
	ProjectID     string `json:"project_id,omitempty"`
	Interviewer   string `json:"interviewer,omitempty"`
	InterviewDate string `json:"interview_date,omitempty"`
	UserID        string `json:"user_id,omitempty"`
}

// Receipt acknowledges a successful save by the storage gateway.
type Receipt struct {
	ID          uuid.UUID `json:"persisted_id"`
	PersistedAt time.Time `json:"persisted_at"`
}
