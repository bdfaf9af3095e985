package llmservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"rag-chatbot/internal/config"
)

type recordingModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
}

func (m *recordingModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, nil
}

func (m *recordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestMessages(t *testing.T) {
	msgs := Messages("sys", "user")
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, llms.TextContent{Text: "user"}, msgs[1].Parts[0])
}

func TestGenerateContent(t *testing.T) {
	m := &recordingModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "hi"}}}}
	resp, err := GenerateContent(context.Background(), m, Messages("s", "u"), llms.WithTemperature(0.2))
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Choices[0].Content)
	assert.Len(t, m.messages, 2)
	assert.InDelta(t, 0.2, m.opts.Temperature, 1e-9)
}

func TestGenerateContent_NoChoices(t *testing.T) {
	m := &recordingModel{resp: &llms.ContentResponse{}}
	_, err := GenerateContent(context.Background(), m, Messages("s", "u"))
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	_, err := NewModel(&config.LLMConfig{Provider: "ollama", Model: "llama3"})
	assert.NoError(t, err)

	_, err = NewModel(&config.LLMConfig{Provider: "openai", Key: "sk-test", Model: "llama-3.3-70b-versatile", BaseURL: "https://api.groq.com/openai/v1"})
	assert.NoError(t, err)

	_, err = NewModel(&config.LLMConfig{Provider: "bedrock"})
	assert.Error(t, err)
}
