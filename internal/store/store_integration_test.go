//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/fieldnote/insight/internal/analyzer"
	"github.com/fieldnote/insight/internal/pipeline"
	"github.com/fieldnote/insight/internal/transcript"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_SaveAndGetAnalysis(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	result := &pipeline.AnalysisResult{
		Transcript: []transcript.Chunk{
			{Number: 1, Speaker: "Sarah", Text: "What slowed you down?"},
			{Number: 2, Speaker: "Daniel", Text: "Exports kept timing out."},
		},
		ProblemAreas: []analyzer.ProblemArea{
			{
				ID:          "prob-1",
				Title:       "Export timeouts",
				Description: "Exports time out on large datasets",
				Category:    "performance",
				Excerpts: []analyzer.Excerpt{
					{Quote: "Exports kept timing out.", Categories: []string{"performance"}, Insight: "Core flow is unusable at scale.", ChunkNumber: 2},
				},
			},
		},
		Synthesis: analyzer.Synthesis{
			Background:       "Daniel is blocked by export performance.",
			ProblemSummaries: []string{"Exports time out."},
			NextSteps:        []string{"Profile the export path."},
		},
		Metadata: pipeline.Metadata{
			TranscriptTokens:   8,
			TokenMode:          "whitespace",
			ProblemAreasCount:  1,
			ExcerptsTotalCount: 1,
		},
		Warnings: []pipeline.Warning{{Code: pipeline.WarnFallbackSynthesis, Message: "test warning"}},
	}
	meta := pipeline.RequestMeta{ProjectID: "proj-int", Interviewer: "Sarah", UserID: "u1"}

	receipt, err := s.SaveAnalysis(ctx, result, meta)
	if err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}
	if receipt.ID.String() == "" || receipt.PersistedAt.IsZero() {
		t.Fatalf("incomplete receipt: %+v", receipt)
	}

	rec, err := s.GetAnalysis(ctx, receipt.ID)
	if err != nil {
		t.Fatalf("GetAnalysis failed: %v", err)
	}
	if rec.Meta.ProjectID != "proj-int" {
		t.Errorf("project_id = %q", rec.Meta.ProjectID)
	}
	if len(rec.Result.Transcript) != 2 {
		t.Errorf("chunks = %d, want 2", len(rec.Result.Transcript))
	}
	if len(rec.Result.ProblemAreas) != 1 {
		t.Fatalf("problem areas = %d, want 1", len(rec.Result.ProblemAreas))
	}
	pa := rec.Result.ProblemAreas[0]
	if pa.ID != "prob-1" || pa.Title != "Export timeouts" {
		t.Errorf("problem area = %+v", pa)
	}
	if len(pa.Excerpts) != 1 || pa.Excerpts[0].ChunkNumber != 2 {
		t.Errorf("excerpts = %+v", pa.Excerpts)
	}
	if len(rec.Result.Warnings) != 1 {
		t.Errorf("warnings = %+v", rec.Result.Warnings)
	}
}

func TestIntegration_SaveFailureIsStorageError(t *testing.T) {
	s := setupTestStore(t)

	// A canceled context forces the save path to fail.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveAnalysis(ctx, &pipeline.AnalysisResult{}, pipeline.RequestMeta{})
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}
