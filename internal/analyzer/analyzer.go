package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldnote/insight/internal/anthropic"
	"github.com/fieldnote/insight/internal/tokens"
	"github.com/fieldnote/insight/internal/transcript"
)

// Completer is the model call the analyzer depends on. Satisfied by
// *anthropic.Client; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}

const (
	defaultMaxAttempts  = 3
	defaultWindowTokens = 12000
	stageMaxTokens      = 8192
)

// Analyzer wraps model calls with stage-specific prompts, strict output
// validation, and bounded retry with corrective feedback. It keeps no state
// between calls, so stages can run concurrently and retry independently.
type Analyzer struct {
	llm     Completer
	counter *tokens.Counter
	logger  *slog.Logger

	// MaxAttempts bounds validation retries per call (attempts, not retries).
	MaxAttempts int
	// WindowTokens caps the formatted transcript size per model call.
	WindowTokens int
}

func New(llm Completer, counter *tokens.Counter, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		llm:          llm,
		counter:      counter,
		logger:       logger,
		MaxAttempts:  defaultMaxAttempts,
		WindowTokens: defaultWindowTokens,
	}
}

type problemsResponse struct {
	ProblemAreas []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
	} `json:"problem_areas"`
}

type excerptsResponse struct {
	Excerpts []Excerpt `json:"excerpts"`
}

// IdentifyProblems runs problem identification over the transcript, one model
// call per token window, and returns the merged problem areas with assigned
// IDs. Any window failing validation after retries fails the stage.
func (a *Analyzer) IdentifyProblems(ctx context.Context, chunks []transcript.Chunk) ([]ProblemArea, error) {
	var problems []ProblemArea

	for _, window := range transcript.Window(chunks, a.counter.Count, a.WindowTokens) {
		prompt := fmt.Sprintf(problemsUserPrompt, transcript.Format(window))

		var resp problemsResponse
		err := a.callStage(ctx, StageProblems, problemsSystemPrompt, prompt, func(raw string) error {
			resp = problemsResponse{}
			if err := json.Unmarshal([]byte(raw), &resp); err != nil {
				return fmt.Errorf("output is not valid JSON: %w", err)
			}
			for i, p := range resp.ProblemAreas {
				if strings.TrimSpace(p.Title) == "" {
					return fmt.Errorf("problem_areas[%d].title is empty", i)
				}
				if strings.TrimSpace(p.Description) == "" {
					return fmt.Errorf("problem_areas[%d].description is empty", i)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, p := range resp.ProblemAreas {
			problems = append(problems, ProblemArea{
				ID:          uuid.NewString(),
				Title:       p.Title,
				Description: p.Description,
				Category:    p.Category,
			})
		}
	}

	a.logger.Info("problem identification complete", "problem_areas", len(problems))
	return problems, nil
}

// ExtractExcerpts finds supporting excerpts for one problem area across the
// full transcript. Chunk references are validated against the whole chunk set;
// an out-of-range reference is a validation failure, never clamped.
func (a *Analyzer) ExtractExcerpts(ctx context.Context, pa ProblemArea, chunks []transcript.Chunk) ([]Excerpt, error) {
	known := transcript.ChunkNumbers(chunks)
	var excerpts []Excerpt

	for _, window := range transcript.Window(chunks, a.counter.Count, a.WindowTokens) {
		prompt := fmt.Sprintf(excerptsUserPrompt, pa.Title, pa.Description, transcript.Format(window))

		var resp excerptsResponse
		err := a.callStage(ctx, StageExcerpts, excerptsSystemPrompt, prompt, func(raw string) error {
			resp = excerptsResponse{}
			if err := json.Unmarshal([]byte(raw), &resp); err != nil {
				return fmt.Errorf("output is not valid JSON: %w", err)
			}
			for i := range resp.Excerpts {
				ex := &resp.Excerpts[i]
				if strings.TrimSpace(ex.Quote) == "" {
					return fmt.Errorf("excerpts[%d].quote is empty", i)
				}
				if !known[ex.ChunkNumber] {
					return fmt.Errorf("excerpts[%d].chunk_number %d does not exist in the transcript", i, ex.ChunkNumber)
				}
				ex.Categories = dedupe(ex.Categories)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		excerpts = append(excerpts, resp.Excerpts...)
	}

	a.logger.Info("excerpt extraction complete",
		"problem_id", pa.ID,
		"excerpts", len(excerpts),
	)
	return excerpts, nil
}

// Synthesize writes the narrative synthesis over the full problem-area set.
func (a *Analyzer) Synthesize(ctx context.Context, problems []ProblemArea) (Synthesis, error) {
	var sb strings.Builder
	for i, p := range problems {
		fmt.Fprintf(&sb, "%d. %s — %s (%d supporting excerpts)\n", i+1, p.Title, p.Description, len(p.Excerpts))
	}
	prompt := fmt.Sprintf(synthesisUserPrompt, sb.String())

	var syn Synthesis
	err := a.callStage(ctx, StageSynthesis, synthesisSystemPrompt, prompt, func(raw string) error {
		syn = Synthesis{}
		if err := json.Unmarshal([]byte(raw), &syn); err != nil {
			return fmt.Errorf("output is not valid JSON: %w", err)
		}
		if strings.TrimSpace(syn.Background) == "" {
			return fmt.Errorf("background is empty")
		}
		if len(syn.ProblemSummaries) == 0 {
			return fmt.Errorf("problem_area_summaries is empty")
		}
		return nil
	})
	if err != nil {
		return Synthesis{}, err
	}

	return syn, nil
}

// callStage runs one validated model call with bounded retry. Validation
// failures feed the next attempt's prompt as corrective feedback; exhausted
// attempts surface as a GenerationError carrying the last raw output.
func (a *Analyzer) callStage(ctx context.Context, stage, system, basePrompt string, validate func(raw string) error) error {
	var lastRaw string
	var lastErr error
	failure := ""

	for attempt := 1; attempt <= a.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &GenerationError{Stage: stage, LastRaw: lastRaw, Err: err}
		}

		prompt := promptWithFeedback(basePrompt, attempt, failure)
		messages := []anthropic.Message{{Role: "user", Content: prompt}}

		raw, err := a.llm.Complete(ctx, system, messages, stageMaxTokens)
		if err != nil {
			// Transport-level failure: the client already exhausted its own
			// backoff. Retry the attempt without feedback.
			lastErr = err
			failure = ""
			a.logger.Warn("model call failed", "stage", stage, "attempt", attempt, "error", err)
			continue
		}

		lastRaw = raw
		if err := validate(extractJSON(raw)); err != nil {
			lastErr = err
			failure = err.Error()
			a.logger.Warn("stage output rejected", "stage", stage, "attempt", attempt, "error", err)
			continue
		}

		return nil
	}

	return &GenerationError{Stage: stage, LastRaw: lastRaw, Err: lastErr}
}

// extractJSON strips markdown fences and surrounding prose so strict decoding
// sees only the JSON object. Models occasionally wrap output despite the
// JSON-only instruction.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		return strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// dedupe drops repeated categories, keeping first-occurrence order.
func dedupe(tags []string) []string {
	if len(tags) < 2 {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
