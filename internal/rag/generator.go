package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"

	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/models"
)

// Fragment is one piece of a streamed answer. A fragment with Err set is
// always the last one.
type Fragment struct {
	Text string
	Err  error
}

type Generator struct {
	llm     llms.Model
	timeout time.Duration
	options []llms.CallOption
}

func NewGenerator(llm llms.Model, timeout time.Duration, options ...llms.CallOption) *Generator {
	return &Generator{llm: llm, timeout: timeout, options: options}
}

// Prompt renders the user turn for question grounded in contextText.
func Prompt(question, contextText string) string {
	return fmt.Sprintf(models.UserPromptTemplate, contextText, question)
}

// Generate streams the answer as the model produces it. The channel closes
// when the model finishes, fails, or ctx is done; consumers that stop early
// must cancel ctx.
func (g *Generator) Generate(ctx context.Context, question, contextText string) <-chan Fragment {
	out := make(chan Fragment)

	go func() {
		defer close(out)
		// sends follow the caller's ctx so a generation timeout is still reported
		send := func(f Fragment) error {
			select {
			case out <- f:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		genCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			genCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		streamed := false
		opts := make([]llms.CallOption, 0, len(g.options)+1)
		opts = append(opts, g.options...)
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed = true
			return send(Fragment{Text: string(chunk)})
		}))

		resp, err := llmservice.GenerateContent(genCtx, g.llm, llmservice.Messages(models.SystemPrompt, Prompt(question, contextText)), opts...)
		if err != nil {
			_ = send(Fragment{Err: fmt.Errorf("%w: %w", models.ErrGeneration, err)})
			return
		}
		if streamed {
			return
		}
		// providers that ignore the streaming callback answer in one piece
		if len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
			_ = send(Fragment{Text: resp.Choices[0].Content})
			return
		}
		_ = send(Fragment{Err: fmt.Errorf("%w: %w", models.ErrGeneration, errEmptyAnswer)})
	}()

	return out
}

var errEmptyAnswer = errors.New("model returned an empty answer")
