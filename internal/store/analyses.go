package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldnote/insight/internal/analyzer"
	"github.com/fieldnote/insight/internal/pipeline"
	"github.com/fieldnote/insight/internal/transcript"
)

// SaveAnalysis persists a full analysis across the analyses, transcript_chunks,
// problem_areas and excerpts tables in one transaction. It implements the
// pipeline's storage gateway contract; every failure comes back as a
// StorageError.
func (s *Store) SaveAnalysis(ctx context.Context, result *pipeline.AnalysisResult, meta pipeline.RequestMeta) (pipeline.Receipt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pipeline.Receipt{}, &StorageError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx)

	analysisID := uuid.New()
	persistedAt := time.Now().UTC()

	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return pipeline.Receipt{}, &StorageError{Op: "marshal warnings", Err: err}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO analyses (
			id, project_id, interviewer, interview_date, user_id,
			transcript_tokens, token_mode, problem_areas_count, excerpts_total_count,
			synthesis_background, synthesis_summaries, synthesis_next_steps, synthesis_auto_generated,
			warnings, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		analysisID, meta.ProjectID, meta.Interviewer, meta.InterviewDate, meta.UserID,
		result.Metadata.TranscriptTokens, result.Metadata.TokenMode,
		result.Metadata.ProblemAreasCount, result.Metadata.ExcerptsTotalCount,
		result.Synthesis.Background, result.Synthesis.ProblemSummaries,
		result.Synthesis.NextSteps, result.Synthesis.AutoGenerated,
		warnings, persistedAt,
	)
	if err != nil {
		return pipeline.Receipt{}, &StorageError{Op: "insert analysis", Err: err}
	}

	for _, c := range result.Transcript {
		_, err = tx.Exec(ctx, `
			INSERT INTO transcript_chunks (id, analysis_id, chunk_number, speaker, text)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), analysisID, c.Number, c.Speaker, c.Text,
		)
		if err != nil {
			return pipeline.Receipt{}, &StorageError{Op: "insert chunk", Err: err}
		}
	}

	for pos, pa := range result.ProblemAreas {
		paID := uuid.New()
		_, err = tx.Exec(ctx, `
			INSERT INTO problem_areas (id, analysis_id, problem_ref, position, title, description, category, degraded, degraded_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			paID, analysisID, pa.ID, pos, pa.Title, pa.Description, pa.Category, pa.Degraded, pa.DegradedReason,
		)
		if err != nil {
			return pipeline.Receipt{}, &StorageError{Op: "insert problem area", Err: err}
		}

		for exPos, ex := range pa.Excerpts {
			_, err = tx.Exec(ctx, `
				INSERT INTO excerpts (id, problem_area_id, position, quote, categories, insight, chunk_number)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.New(), paID, exPos, ex.Quote, ex.Categories, ex.Insight, ex.ChunkNumber,
			)
			if err != nil {
				return pipeline.Receipt{}, &StorageError{Op: "insert excerpt", Err: err}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return pipeline.Receipt{}, &StorageError{Op: "commit", Err: err}
	}

	return pipeline.Receipt{ID: analysisID, PersistedAt: persistedAt}, nil
}

// AnalysisRecord is a persisted analysis read back for browsing.
type AnalysisRecord struct {
	ID          uuid.UUID
	Meta        pipeline.RequestMeta
	Result      pipeline.AnalysisResult
	PersistedAt time.Time
}

// GetAnalysis reconstructs a persisted analysis by id.
func (s *Store) GetAnalysis(ctx context.Context, id uuid.UUID) (*AnalysisRecord, error) {
	rec := &AnalysisRecord{ID: id}
	var warnings []byte

	err := s.pool.QueryRow(ctx, `
		SELECT project_id, interviewer, interview_date, user_id,
		       transcript_tokens, token_mode, problem_areas_count, excerpts_total_count,
		       synthesis_background, synthesis_summaries, synthesis_next_steps, synthesis_auto_generated,
		       warnings, created_at
		FROM analyses WHERE id = $1`, id,
	).Scan(
		&rec.Meta.ProjectID, &rec.Meta.Interviewer, &rec.Meta.InterviewDate, &rec.Meta.UserID,
		&rec.Result.Metadata.TranscriptTokens, &rec.Result.Metadata.TokenMode,
		&rec.Result.Metadata.ProblemAreasCount, &rec.Result.Metadata.ExcerptsTotalCount,
		&rec.Result.Synthesis.Background, &rec.Result.Synthesis.ProblemSummaries,
		&rec.Result.Synthesis.NextSteps, &rec.Result.Synthesis.AutoGenerated,
		&warnings, &rec.PersistedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("select analysis: %w", err)
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &rec.Result.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chunk_number, speaker, text
		FROM transcript_chunks WHERE analysis_id = $1 ORDER BY chunk_number`, id)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c transcript.Chunk
		if err := rows.Scan(&c.Number, &c.Speaker, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		rec.Result.Transcript = append(rec.Result.Transcript, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	paRows, err := s.pool.Query(ctx, `
		SELECT id, problem_ref, title, description, category, degraded, degraded_reason
		FROM problem_areas WHERE analysis_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select problem areas: %w", err)
	}
	defer paRows.Close()

	var paIDs []uuid.UUID
	for paRows.Next() {
		var rowID uuid.UUID
		var pa analyzer.ProblemArea
		if err := paRows.Scan(&rowID, &pa.ID, &pa.Title, &pa.Description, &pa.Category, &pa.Degraded, &pa.DegradedReason); err != nil {
			return nil, fmt.Errorf("scan problem area: %w", err)
		}
		paIDs = append(paIDs, rowID)
		rec.Result.ProblemAreas = append(rec.Result.ProblemAreas, pa)
	}
	if err := paRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate problem areas: %w", err)
	}

	for i, paID := range paIDs {
		exRows, err := s.pool.Query(ctx, `
			SELECT quote, categories, insight, chunk_number
			FROM excerpts WHERE problem_area_id = $1 ORDER BY position`, paID)
		if err != nil {
			return nil, fmt.Errorf("select excerpts: %w", err)
		}
		for exRows.Next() {
			var ex analyzer.Excerpt
			if err := exRows.Scan(&ex.Quote, &ex.Categories, &ex.Insight, &ex.ChunkNumber); err != nil {
				exRows.Close()
				return nil, fmt.Errorf("scan excerpt: %w", err)
			}
			rec.Result.ProblemAreas[i].Excerpts = append(rec.Result.ProblemAreas[i].Excerpts, ex)
		}
		if err := exRows.Err(); err != nil {
			exRows.Close()
			return nil, fmt.Errorf("iterate excerpts: %w", err)
		}
		exRows.Close()
	}

	return rec, nil
}
