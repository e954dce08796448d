package gtm

import (
	"bytes"
	"embed"
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/inflect-gtm/inflect/pkg/policy"
	"github.com/inflect-gtm/inflect/pkg/repository"
	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/inflect-gtm/inflect/pkg/usecase/followup"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/*.md
var promptFS embed.FS

var prompts = template.Must(template.New("gtm").Funcs(template.FuncMap{
	"join": strings.Join,
}).ParseFS(promptFS, "prompt/*.md"))

var (
	ErrNoCustomers    = goerr.New("no customers in workspace")
	ErrNoSegmentation = goerr.New("customers have not been segmented")
)

// sampleSize bounds how many customer records are shown to the LLM
const sampleSize = 5

// UseCase runs the go-to-market agents over a shared workspace
type UseCase struct {
	llm         adapter.LLM
	repo        repository.Repository
	tools       *tool.Set
	policy      *policy.Engine
	profiles    agent.Profiles
	followup    *followup.UseCase
	publishDocs bool
	now         func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithTools sets the collaborators available to the agents
func WithTools(set *tool.Set) Option {
	return func(uc *UseCase) {
		uc.tools = set
	}
}

// WithPolicy makes Segment group customers with Rego rules instead of the LLM
func WithPolicy(engine *policy.Engine) Option {
	return func(uc *UseCase) {
		uc.policy = engine
	}
}

func WithProfiles(profiles agent.Profiles) Option {
	return func(uc *UseCase) {
		uc.profiles = profiles
	}
}

// WithFollowup sets the pipeline used by PostDemo
func WithFollowup(f *followup.UseCase) Option {
	return func(uc *UseCase) {
		uc.followup = f
	}
}

// WithPublishDocs publishes onboarding documents through the Docs collaborator
func WithPublishDocs(publish bool) Option {
	return func(uc *UseCase) {
		uc.publishDocs = publish
	}
}

func WithNow(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a new GTM UseCase instance
func New(llm adapter.LLM, repo repository.Repository, opts ...Option) *UseCase {
	uc := &UseCase{
		llm:      llm,
		repo:     repo,
		tools:    &tool.Set{},
		profiles: agent.Profiles{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (u *UseCase) profile(name agent.Name, extra ...adapter.GenerateOption) []adapter.GenerateOption {
	return append(u.profiles.Get(name).GenerateOptions(), extra...)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute prompt template", goerr.V("template", name))
	}
	return buf.String(), nil
}

func toJSON(v any) (string, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal prompt data")
	}
	return string(raw), nil
}
