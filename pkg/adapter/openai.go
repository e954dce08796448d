package adapter

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements LLM and Embedder against the OpenAI API or any
// OpenAI-compatible server such as Ollama.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
	dimensions     int
	sendDimensions bool
}

type OpenAIOption func(*openAISettings)

type openAISettings struct {
	baseURL        string
	model          string
	embeddingModel string
	dimensions     int
	sendDimensions bool
}

func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(s *openAISettings) {
		s.baseURL = url
	}
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(s *openAISettings) {
		s.model = model
	}
}

// WithOpenAIEmbeddingModel sets the embedding model and the vector size it yields
func WithOpenAIEmbeddingModel(model string, dims int) OpenAIOption {
	return func(s *openAISettings) {
		s.embeddingModel = model
		s.dimensions = dims
	}
}

// NewOpenAI creates a client for api.openai.com. Embeddings are shortened to
// the configured dimensions server side.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	s := &openAISettings{
		model:          openai.GPT4oMini,
		embeddingModel: string(openai.SmallEmbedding3),
		dimensions:     384,
		sendDimensions: true,
	}
	return newOpenAIClient(apiKey, s, opts)
}

// NewOllama creates a client for an Ollama server through its OpenAI-compatible API.
// The defaults mirror a local llama3.1 + all-minilm setup.
func NewOllama(baseURL string, opts ...OpenAIOption) *OpenAIClient {
	s := &openAISettings{
		baseURL:        strings.TrimRight(baseURL, "/") + "/v1",
		model:          "llama3.1",
		embeddingModel: "all-minilm",
		dimensions:     384,
	}
	return newOpenAIClient("ollama", s, opts)
}

func newOpenAIClient(apiKey string, s *openAISettings, opts []OpenAIOption) *OpenAIClient {
	for _, opt := range opts {
		opt(s)
	}

	cfg := openai.DefaultConfig(apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(cfg),
		model:          s.model,
		embeddingModel: s.embeddingModel,
		dimensions:     s.dimensions,
		sendDimensions: s.sendDimensions,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	cfg := NewGenerateConfig(opts...)

	req := openai.ChatCompletionRequest{
		Model: c.model,
	}
	if cfg.Model != "" {
		req.Model = cfg.Model
	}
	if cfg.System != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: cfg.System,
		})
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
	if cfg.Temperature != nil {
		req.Temperature = float32(*cfg.Temperature)
	}
	if cfg.Schema != nil {
		raw, err := json.Marshal(cfg.Schema)
		if err != nil {
			return "", goerr.Wrap(err, "failed to marshal response schema")
		}
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "response",
				Schema: json.RawMessage(raw),
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion", goerr.V("model", req.Model))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", goerr.Wrap(ErrEmptyResponse, "no choices in chat completion", goerr.V("model", req.Model))
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	}
	if c.sendDimensions {
		req.Dimensions = c.dimensions
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embeddings", goerr.V("model", c.embeddingModel))
	}
	if len(resp.Data) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(resp.Data)))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) != c.dimensions {
			return nil, goerr.New("unexpected embedding dimensions",
				goerr.V("expected", c.dimensions),
				goerr.V("actual", len(d.Embedding)))
		}
		vectors[i] = d.Embedding
	}

	return vectors, nil
}

func (c *OpenAIClient) Dimensions() int { return c.dimensions }

func (c *OpenAIClient) Model() string { return c.embeddingModel }
