// Package pipeline orchestrates the three-stage transcript analysis: problem
// identification, per-problem excerpt extraction, and synthesis. Each run is
// request-scoped and independent; no state is shared between runs.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldnote/insight/internal/analyzer"
	"github.com/fieldnote/insight/internal/events"
	"github.com/fieldnote/insight/internal/tokens"
	"github.com/fieldnote/insight/internal/transcript"
)

// Stages is the structured-generation surface the orchestrator drives.
// Satisfied by *analyzer.Analyzer; tests substitute fakes.
type Stages interface {
	IdentifyProblems(ctx context.Context, chunks []transcript.Chunk) ([]analyzer.ProblemArea, error)
	ExtractExcerpts(ctx context.Context, pa analyzer.ProblemArea, chunks []transcript.Chunk) ([]analyzer.Excerpt, error)
	Synthesize(ctx context.Context, problems []analyzer.ProblemArea) (analyzer.Synthesis, error)
}

// Gateway is the save contract of the storage collaborator. The pipeline does
// not know how or where results are persisted.
type Gateway interface {
	SaveAnalysis(ctx context.Context, result *AnalysisResult, meta RequestMeta) (Receipt, error)
}

// Publisher announces run outcomes. Satisfied by *events.Client; nil disables
// announcements.
type Publisher interface {
	Publish(subject string, data any) error
}

const (
	defaultConcurrency = 4
	defaultTimeout     = 10 * time.Minute
)

type Pipeline struct {
	stages    Stages
	counter   *tokens.Counter
	gateway   Gateway
	publisher Publisher
	logger    *slog.Logger

	// Concurrency bounds the Stage-2 fan-out; clamped to the number of
	// problem areas at run time.
	Concurrency int
	// Timeout is the overall per-run deadline.
	Timeout time.Duration
}

func New(stages Stages, counter *tokens.Counter, gateway Gateway, publisher Publisher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		stages:      stages,
		counter:     counter,
		gateway:     gateway,
		publisher:   publisher,
		logger:      logger,
		Concurrency: defaultConcurrency,
		Timeout:     defaultTimeout,
	}
}

// Run executes the analysis stages over a raw transcript and assembles the
// result. It does not persist anything; see Process.
func (p *Pipeline) Run(ctx context.Context, raw string) (*AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	chunks, err := transcript.Parse(raw)
	if err != nil {
		return nil, err
	}

	// Empty transcript: a valid empty result, no model calls at all.
	if len(chunks) == 0 {
		p.logger.Info("empty transcript, short-circuiting")
		return Assemble(nil, nil, fallbackSynthesis(nil), p.counter, nil), nil
	}

	state := StageProblemIdentification
	p.logger.Info("stage entered", "stage", state, "chunks", len(chunks))

	problems, err := p.stages.IdentifyProblems(ctx, chunks)
	if err != nil {
		p.logger.Error("stage failed", "stage", state, "error", err)
		return nil, err
	}

	// Zero findings is an explicitly valid outcome, not an error.
	if len(problems) == 0 {
		p.logger.Info("no problem areas identified")
		return Assemble(chunks, nil, fallbackSynthesis(nil), p.counter, nil), nil
	}

	state = StageExcerptExtraction
	p.logger.Info("stage entered", "stage", state, "problem_areas", len(problems))

	warnings := p.extractAll(ctx, problems, chunks)

	state = StageSynthesis
	p.logger.Info("stage entered", "stage", state)

	syn, warnings := p.synthesize(ctx, problems, warnings)

	state = StageDone
	p.logger.Info("stage entered", "stage", state, "warnings", len(warnings))

	return Assemble(chunks, problems, syn, p.counter, warnings), nil
}

// extractAll fans out one excerpt-extraction unit per problem area with
// bounded concurrency and waits for all of them. A unit that exhausts its
// retries degrades its problem area instead of failing the run; results are
// written per index, so no unit touches another's slot.
func (p *Pipeline) extractAll(ctx context.Context, problems []analyzer.ProblemArea, chunks []transcript.Chunk) []Warning {
	limit := p.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	if limit > len(problems) {
		limit = len(problems)
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i := range problems {
		g.Go(func() error {
			pa := problems[i]
			excerpts, err := p.stages.ExtractExcerpts(ctx, pa, chunks)
			if err != nil {
				p.logger.Warn("excerpt extraction degraded",
					"problem_id", pa.ID,
					"title", pa.Title,
					"error", err,
				)
				problems[i].Excerpts = nil
				problems[i].Degraded = true
				problems[i].DegradedReason = err.Error()
				return nil
			}
			problems[i].Excerpts = excerpts
			return nil
		})
	}
	_ = g.Wait() // units report degradation in place, never an error

	var warnings []Warning
	for i := range problems {
		if problems[i].Degraded {
			warnings = append(warnings, Warning{
				Code:      WarnExcerptExtractionFailed,
				Message:   fmt.Sprintf("excerpt extraction failed for %q; kept with empty excerpts", problems[i].Title),
				ProblemID: problems[i].ID,
			})
		}
	}
	return warnings
}

// synthesize runs Stage 3 over the problem areas that survived extraction and
// falls back to the mechanical synthesis when the stage fails. Synthesis is
// supplementary prose; it never fails the run.
func (p *Pipeline) synthesize(ctx context.Context, problems []analyzer.ProblemArea, warnings []Warning) (analyzer.Synthesis, []Warning) {
	active := make([]analyzer.ProblemArea, 0, len(problems))
	for _, pa := range problems {
		if !pa.Degraded {
			active = append(active, pa)
		}
	}

	if len(active) == 0 {
		warnings = append(warnings, Warning{
			Code:    WarnFallbackSynthesis,
			Message: "all problem areas degraded; synthesis auto-generated",
		})
		return fallbackSynthesis(problems), warnings
	}

	syn, err := p.stages.Synthesize(ctx, active)
	if err != nil {
		p.logger.Warn("synthesis failed, using fallback", "error", err)
		warnings = append(warnings, Warning{
			Code:    WarnFallbackSynthesis,
			Message: fmt.Sprintf("synthesis auto-generated after stage failure: %v", err),
		})
		return fallbackSynthesis(problems), warnings
	}
	return syn, warnings
}

// Process runs the pipeline and hands the result to the storage gateway. A
// persistence failure is reported alongside the result, never instead of it:
// the analysis succeeded and is returned with a nil receipt so the caller can
// retry the save without re-running the model stages.
func (p *Pipeline) Process(ctx context.Context, raw string, meta RequestMeta) (*AnalysisResult, *Receipt, error) {
	result, err := p.Run(ctx, raw)
	if err != nil {
		p.announceFailed(meta, err)
		return nil, nil, err
	}

	receipt, err := p.gateway.SaveAnalysis(ctx, result, meta)
	if err != nil {
		p.logger.Error("save failed", "error", err)
		p.announceCompleted(result, nil, meta)
		return result, nil, err
	}

	p.logger.Info("analysis persisted",
		"analysis_id", receipt.ID,
		"problem_areas", result.Metadata.ProblemAreasCount,
		"excerpts", result.Metadata.ExcerptsTotalCount,
	)
	p.announceCompleted(result, &receipt, meta)
	return result, &receipt, nil
}

// UploadEvent is the payload of a transcript-uploaded event.
type UploadEvent struct {
	Transcript    string `json:"transcript"`
	ProjectID     string `json:"project_id,omitempty"`
	Interviewer   string `json:"interviewer,omitempty"`
	InterviewDate string `json:"interview_date,omitempty"`
	UserID        string `json:"user_id,omitempty"`
}

// HandleTranscriptUploaded is the NATS handler for transcript-uploaded events.
// It runs the same pipeline as the HTTP path.
func (p *Pipeline) HandleTranscriptUploaded(subject string, data []byte) {
	ctx := context.Background()

	var evt UploadEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse upload event", "error", err)
		return
	}

	meta := RequestMeta{
		ProjectID:     evt.ProjectID,
		Interviewer:   evt.Interviewer,
		InterviewDate: evt.InterviewDate,
		UserID:        evt.UserID,
	}

	p.logger.Info("processing uploaded transcript",
		"project_id", evt.ProjectID,
		"transcript_len", len(evt.Transcript),
	)

	if _, _, err := p.Process(ctx, evt.Transcript, meta); err != nil {
		p.logger.Error("upload processing failed", "project_id", evt.ProjectID, "error", err)
	}
}

func (p *Pipeline) announceCompleted(result *AnalysisResult, receipt *Receipt, meta RequestMeta) {
	if p.publisher == nil {
		return
	}
	payload := map[string]any{
		"project_id":    meta.ProjectID,
		"problem_areas": result.Metadata.ProblemAreasCount,
		"excerpts":      result.Metadata.ExcerptsTotalCount,
		"warnings":      len(result.Warnings),
		"persisted":     receipt != nil,
	}
	if receipt != nil {
		payload["analysis_id"] = receipt.ID.String()
	}
	if err := p.publisher.Publish(events.SubjectAnalysisCompleted, payload); err != nil {
		p.logger.Warn("failed to publish completion", "error", err)
	}
}

func (p *Pipeline) announceFailed(meta RequestMeta, cause error) {
	if p.publisher == nil {
		return
	}
	payload := map[string]any{
		"project_id": meta.ProjectID,
		"error":      cause.Error(),
	}
	var genErr *analyzer.GenerationError
	if errors.As(cause, &genErr) {
		payload["stage"] = genErr.Stage
	}
	if err := p.publisher.Publish(events.SubjectAnalysisFailed, payload); err != nil {
		p.logger.Warn("failed to publish failure", "error", err)
	}
}
