package pipeline

import (
	"fmt"

	"github.com/fieldnote/insight/internal/analyzer"
	"github.com/fieldnote/insight/internal/tokens"
	"github.com/fieldnote/insight/internal/transcript"
)

// Assemble merges parser output, stage outputs, and token metadata into one
// AnalysisResult. Counts are recomputed by direct aggregation. An excerpt
// referencing a chunk that does not exist is dropped with a referential
// integrity warning; a bad cross-reference never discards the rest of an
// otherwise valid analysis.
func Assemble(chunks []transcript.Chunk, problems []analyzer.ProblemArea, syn analyzer.Synthesis, counter *tokens.Counter, warnings []Warning) *AnalysisResult {
	known := transcript.ChunkNumbers(chunks)

	excerptsTotal := 0
	out := make([]analyzer.ProblemArea, len(problems))
	for i, pa := range problems {
		kept := make([]analyzer.Excerpt, 0, len(pa.Excerpts))
		for _, ex := range pa.Excerpts {
			if !known[ex.ChunkNumber] {
				warnings = append(warnings, Warning{
					Code:      WarnReferentialIntegrity,
					Message:   fmt.Sprintf("excerpt dropped: chunk %d not in transcript", ex.ChunkNumber),
					ProblemID: pa.ID,
				})
				continue
			}
			kept = append(kept, ex)
		}
		pa.Excerpts = kept
		out[i] = pa
		excerptsTotal += len(kept)
	}

	return &AnalysisResult{
		Transcript:   chunks,
		ProblemAreas: out,
		Synthesis:    syn,
		Metadata: Metadata{
			TranscriptTokens:   counter.CountChunks(chunks),
			TokenMode:          string(counter.Mode()),
			ProblemAreasCount:  len(out),
			ExcerptsTotalCount: excerptsTotal,
		},
		Warnings: warnings,
	}
}

// fallbackSynthesis builds the mechanical synthesis used when the synthesis
// stage fails or there is nothing to synthesize. Guaranteed to succeed.
func fallbackSynthesis(problems []analyzer.ProblemArea) analyzer.Synthesis {
	syn := analyzer.Synthesis{
		AutoGenerated: true,
	}

	if len(problems) == 0 {
		syn.Background = "No problem areas were identified in this interview."
		return syn
	}

	syn.Background = fmt.Sprintf("Auto-generated summary of %d problem area(s) identified in this interview.", len(problems))
	for _, pa := range problems {
		summary := pa.Title
		if pa.Description != "" {
			summary = pa.Title + ": " + pa.Description
		}
		syn.ProblemSummaries = append(syn.ProblemSummaries, summary)
	}
	syn.NextSteps = []string{"Review each problem area and its supporting excerpts."}
	return syn
}
