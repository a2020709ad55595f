package server

import (
	"context"
	"fmt"
)

// Engine produces a completion for a single prompt with the given model.
type Engine interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// summarize runs the chunk-then-synthesize pipeline: short selections go
// upstream in one shot, long ones are summarized per chunk and the
// partial summaries are merged by a final pass.
func (s *Server) summarize(ctx context.Context, text, tone string, maxSentences int, model string) (string, error) {
	instr := toneInstruction(tone, maxSentences)
	parts := chunkText(collapseURLs(text), maxCharsPerChunk)
	summarizeChunks.Observe(float64(len(parts)))

	if len(parts) == 1 {
		return s.engine.Complete(ctx, chunkPrompt(instr, parts[0]), model)
	}

	partials := make([]string, 0, len(parts))
	for i, chunk := range parts {
		partial, err := s.engine.Complete(ctx, partPrompt(instr, chunk, i+1, len(parts)), model)
		if err != nil {
			return "", fmt.Errorf("summarize part %d of %d: %w", i+1, len(parts), err)
		}
		partials = append(partials, partial)
	}

	return s.engine.Complete(ctx, synthesisPrompt(instr, partials), model)
}
