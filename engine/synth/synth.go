// Package synth turns retrieved chunks plus a question into an answer
// through a chat completion model. The prompt constrains the model to
// the supplied context; when there is no context at all, synthesis
// short-circuits to the refusal answer without spending a model call.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/docsage-ai/docsage/engine/domain"
)

// NoAnswer is the exact refusal string the prompt demands from the
// model when the context doesn't contain the answer.
const NoAnswer = "I don't know."

const promptTemplate = `Use the following pieces of context to answer the question at the end.
If you don't know the answer based on the context, just say "I don't know." and nothing else.
Do not use any outside knowledge.

Context:
%s

Question: %s

Answer:`

// ChatClient produces one completion for a prompt.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Synthesizer composes prompts and delegates to a ChatClient.
type Synthesizer struct {
	client ChatClient
}

// New creates a Synthesizer.
func New(client ChatClient) *Synthesizer {
	return &Synthesizer{client: client}
}

// Answer generates an answer from the question and retrieved chunks.
func (s *Synthesizer) Answer(ctx context.Context, question string, chunks []domain.ScoredChunk) (string, error) {
	if len(chunks) == 0 {
		return NoAnswer, nil
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	prompt := fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)

	answer, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("synth: %w: %v", domain.ErrSynthesis, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("synth: %w: model returned an empty answer", domain.ErrSynthesis)
	}
	return answer, nil
}
