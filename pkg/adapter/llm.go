package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrLLMTimeout      = goerr.New("LLM call timed out")
	ErrUnknownProvider = goerr.New("unknown LLM provider")
	ErrEmptyResponse   = goerr.New("empty response from LLM")
)

// DefaultLLMTimeout bounds a single LLM call
const DefaultLLMTimeout = 30 * time.Second

// Provider is the closed set of supported LLM backends
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// Providers lists every supported backend
func Providers() []Provider {
	return []Provider{ProviderGemini, ProviderClaude, ProviderOpenAI, ProviderOllama}
}

func (p Provider) Validate() error {
	for _, v := range Providers() {
		if p == v {
			return nil
		}
	}
	return goerr.Wrap(ErrUnknownProvider, "invalid provider", goerr.V("provider", p))
}

// LLM turns a prompt into text. Implementations make exactly one remote call.
type LLM interface {
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)
}

// GenerateOption tunes a single Generate call
type GenerateOption func(*GenerateConfig)

// GenerateConfig is the resolved set of per-call options
type GenerateConfig struct {
	Temperature *float64
	Model       string
	System      string
	Schema      *jsonschema.Schema
}

func WithTemperature(t float64) GenerateOption {
	return func(c *GenerateConfig) {
		c.Temperature = &t
	}
}

// WithModel overrides the provider's default model for one call
func WithModel(model string) GenerateOption {
	return func(c *GenerateConfig) {
		c.Model = model
	}
}

func WithSystem(instruction string) GenerateOption {
	return func(c *GenerateConfig) {
		c.System = instruction
	}
}

// WithSchema requests a JSON response shaped by schema
func WithSchema(schema *jsonschema.Schema) GenerateOption {
	return func(c *GenerateConfig) {
		c.Schema = schema
	}
}

// NewGenerateConfig applies opts in order
func NewGenerateConfig(opts ...GenerateOption) *GenerateConfig {
	cfg := &GenerateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

type timeoutLLM struct {
	llm     LLM
	timeout time.Duration
}

// NewTimeoutLLM bounds every call of llm by timeout. A non-positive timeout disables the bound.
func NewTimeoutLLM(llm LLM, timeout time.Duration) LLM {
	return &timeoutLLM{llm: llm, timeout: timeout}
}

func (x *timeoutLLM) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	if x.timeout <= 0 {
		return x.llm.Generate(ctx, prompt, opts...)
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	text, err := x.llm.Generate(ctx, prompt, opts...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", goerr.Wrap(ErrLLMTimeout, "LLM call exceeded deadline",
				goerr.V("timeout", x.timeout.String()),
				goerr.V("cause", err.Error()))
		}
		return "", err
	}

	return text, nil
}
