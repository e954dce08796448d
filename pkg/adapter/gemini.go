package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini is the raw content generation surface of the genai client
type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
	dimensions      int
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

// WithEmbeddingDimensions sets the requested output dimensionality
func WithEmbeddingDimensions(dims int) GeminiOption {
	return func(g *GeminiClient) {
		g.dimensions = dims
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
		dimensions:      384,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.generateContent(ctx, g.generativeModel, contents, config)
}

func (g *GeminiClient) generateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", model))
	}
	return resp, nil
}

// Generate implements LLM
func (g *GeminiClient) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	cfg := NewGenerateConfig(opts...)

	config, err := buildGeminiConfig(cfg)
	if err != nil {
		return "", err
	}

	model := g.generativeModel
	if cfg.Model != "" {
		model = cfg.Model
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := g.generateContent(ctx, model, contents, config)
	if err != nil {
		return "", err
	}

	return responseText(resp)
}

func buildGeminiConfig(cfg *GenerateConfig) (*genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{}

	if cfg.Temperature != nil {
		temp := float32(*cfg.Temperature)
		config.Temperature = &temp
	}
	if cfg.System != "" {
		config.SystemInstruction = genai.NewContentFromText(cfg.System, "")
	}
	if cfg.Schema != nil {
		schema, err := convertJSONSchemaToGenai(cfg.Schema)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert response schema")
		}
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}

	return config, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.Wrap(ErrEmptyResponse, "no candidates in gemini response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", goerr.Wrap(ErrEmptyResponse, "no text parts in gemini response")
	}

	return b.String(), nil
}

// Embed implements Embedder. Texts are embedded one request at a time since the
// Vertex endpoint accepts a single instance per call for this model family.
func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	dims := int32(g.dimensions)
	vectors := make([][]float32, 0, len(texts))

	for i, text := range texts {
		resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
			TaskType:             "SEMANTIC_SIMILARITY",
			OutputDimensionality: &dims,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed content", goerr.V("index", i), goerr.V("model", g.embeddingModel))
		}
		if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return nil, goerr.New("no embedding in response", goerr.V("index", i))
		}
		if len(resp.Embeddings[0].Values) != g.dimensions {
			return nil, goerr.New("unexpected embedding dimensions",
				goerr.V("expected", g.dimensions),
				goerr.V("actual", len(resp.Embeddings[0].Values)))
		}
		vectors = append(vectors, resp.Embeddings[0].Values)
	}

	return vectors, nil
}

func (g *GeminiClient) Dimensions() int { return g.dimensions }

func (g *GeminiClient) Model() string { return g.embeddingModel }
