package cli

import (
	"context"
	"errors"
	"time"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/inflect-gtm/inflect/pkg/policy"
	"github.com/inflect-gtm/inflect/pkg/repository"
	"github.com/inflect-gtm/inflect/pkg/usecase/followup"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/inflect-gtm/inflect/pkg/vectorstore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// LLM
	llmProvider     string
	llmModel        string
	llmTimeout      time.Duration
	anthropicAPIKey string
	openaiAPIKey    string
	ollamaURL       string
	geminiProject   string
	geminiLocation  string
	agentProfiles   string

	// Embedding and vector store
	embedProvider string
	embedModel    string
	storeDir      string
	storeBucket   string
	storePrefix   string

	// Repository
	repoBackend       string
	sqlitePath        string
	firestoreProject  string
	firestoreDatabase string

	// Google Workspace
	googleCredentials string
	googleToken       string
	timezone          string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("INFLECT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("INFLECT_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "env-file",
			Usage:       "Path to a .env file loaded before flags are resolved",
			Value:       defaultEnvFile,
			Destination: new(string),
		},
		&cli.StringFlag{
			Name:        "timezone",
			Aliases:     []string{"tz"},
			Usage:       "Zone for timestamps without offset",
			Value:       "UTC",
			Sources:     cli.EnvVars("INFLECT_TIMEZONE"),
			Destination: &cfg.timezone,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm",
			Usage:       "LLM provider (gemini, claude, openai, ollama)",
			Value:       string(adapter.ProviderGemini),
			Sources:     cli.EnvVars("INFLECT_LLM"),
			Destination: &cfg.llmProvider,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Override the provider's default model",
			Sources:     cli.EnvVars("INFLECT_LLM_MODEL"),
			Destination: &cfg.llmModel,
		},
		&cli.DurationFlag{
			Name:        "llm-timeout",
			Usage:       "Deadline of a single LLM call",
			Value:       adapter.DefaultLLMTimeout,
			Sources:     cli.EnvVars("INFLECT_LLM_TIMEOUT"),
			Destination: &cfg.llmTimeout,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "ollama-url",
			Usage:       "Ollama server URL",
			Value:       "http://localhost:11434",
			Sources:     cli.EnvVars("OLLAMA_HOST"),
			Destination: &cfg.ollamaURL,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "agent-profiles",
			Usage:       "TOML file overriding agent instructions, models and temperatures",
			Sources:     cli.EnvVars("INFLECT_AGENT_PROFILES"),
			Destination: &cfg.agentProfiles,
		},
	}
}

// storeFlags returns flags for embeddings and the vector store
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedder",
			Usage:       "Embedding provider (gemini, openai, ollama)",
			Value:       string(adapter.ProviderOllama),
			Sources:     cli.EnvVars("INFLECT_EMBEDDER"),
			Destination: &cfg.embedProvider,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Override the embedding model; it must produce 384-dimensional vectors",
			Sources:     cli.EnvVars("INFLECT_EMBEDDING_MODEL"),
			Destination: &cfg.embedModel,
		},
		&cli.StringFlag{
			Name:        "store-dir",
			Usage:       "Local directory of the vector store files",
			Value:       ".inflect/store",
			Sources:     cli.EnvVars("INFLECT_STORE_DIR"),
			Destination: &cfg.storeDir,
		},
		&cli.StringFlag{
			Name:        "store-bucket",
			Usage:       "Cloud Storage bucket of the vector store files; overrides --store-dir",
			Sources:     cli.EnvVars("INFLECT_STORE_BUCKET"),
			Destination: &cfg.storeBucket,
		},
		&cli.StringFlag{
			Name:        "store-prefix",
			Usage:       "Object name prefix inside the bucket",
			Value:       "vectorstore",
			Sources:     cli.EnvVars("INFLECT_STORE_PREFIX"),
			Destination: &cfg.storePrefix,
		},
	}
}

// repositoryFlags returns flags for the workspace repository
func repositoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "Workspace backend (sqlite, firestore, memory)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("INFLECT_REPOSITORY"),
			Destination: &cfg.repoBackend,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "SQLite database file",
			Value:       ".inflect/workspace.db",
			Sources:     cli.EnvVars("INFLECT_SQLITE_PATH"),
			Destination: &cfg.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID of Firestore",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
	}
}

// googleFlags returns flags for Google Workspace credentials
func googleFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "google-credentials",
			Usage:       "OAuth client credentials JSON file",
			Sources:     cli.EnvVars("INFLECT_GOOGLE_CREDENTIALS"),
			Destination: &cfg.googleCredentials,
		},
		&cli.StringFlag{
			Name:        "google-token",
			Usage:       "Stored OAuth token JSON file; application default credentials are used without it",
			Sources:     cli.EnvVars("INFLECT_GOOGLE_TOKEN"),
			Destination: &cfg.googleToken,
		},
	}
}

// setupLogger builds the logger from flags and attaches it to ctx
func (cfg *config) setupLogger(ctx context.Context) (context.Context, error) {
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return ctx, err
	}
	if _, err := logging.ParseLevel(cfg.logLevel); err != nil {
		return ctx, err
	}

	logger := logging.New(cfg.logLevel, format, nil)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

func (cfg *config) location() (*time.Location, error) {
	if cfg.timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(cfg.timezone)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid timezone", goerr.V("timezone", cfg.timezone))
	}
	return loc, nil
}

// newLLM creates the configured provider bounded by the LLM timeout
func (cfg *config) newLLM(ctx context.Context) (adapter.LLM, error) {
	provider := adapter.Provider(cfg.llmProvider)
	if err := provider.Validate(); err != nil {
		return nil, err
	}

	var llm adapter.LLM
	switch provider {
	case adapter.ProviderGemini:
		g, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		llm = g

	case adapter.ProviderClaude:
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required")
		}
		var opts []adapter.ClaudeOption
		if cfg.llmModel != "" {
			opts = append(opts, adapter.WithClaudeModel(cfg.llmModel))
		}
		llm = adapter.NewClaude(cfg.anthropicAPIKey, opts...)

	case adapter.ProviderOpenAI:
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required")
		}
		llm = adapter.NewOpenAI(cfg.openaiAPIKey, cfg.openAIOptions()...)

	case adapter.ProviderOllama:
		llm = adapter.NewOllama(cfg.ollamaURL, cfg.openAIOptions()...)
	}

	return adapter.NewTimeoutLLM(llm, cfg.llmTimeout), nil
}

func (cfg *config) openAIOptions() []adapter.OpenAIOption {
	var opts []adapter.OpenAIOption
	if cfg.llmModel != "" {
		opts = append(opts, adapter.WithOpenAIModel(cfg.llmModel))
	}
	if cfg.embedModel != "" {
		opts = append(opts, adapter.WithOpenAIEmbeddingModel(cfg.embedModel, vectorstore.Dimension))
	}
	return opts
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	opts := []adapter.GeminiOption{adapter.WithEmbeddingDimensions(vectorstore.Dimension)}
	if cfg.llmModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.llmModel))
	}
	if cfg.embedModel != "" {
		opts = append(opts, adapter.WithEmbeddingModel(cfg.embedModel))
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	switch adapter.Provider(cfg.embedProvider) {
	case adapter.ProviderGemini:
		return cfg.newGemini(ctx)
	case adapter.ProviderOpenAI:
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required")
		}
		return adapter.NewOpenAI(cfg.openaiAPIKey, cfg.openAIOptions()...), nil
	case adapter.ProviderOllama:
		return adapter.NewOllama(cfg.ollamaURL, cfg.openAIOptions()...), nil
	default:
		return nil, goerr.Wrap(adapter.ErrUnknownProvider, "embedder must be gemini, openai or ollama",
			goerr.V("embedder", cfg.embedProvider))
	}
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.storeBucket != "" {
		storage, err := adapter.NewStorage(ctx, cfg.storeBucket, cfg.storePrefix)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		return storage, nil
	}

	if cfg.storeDir == "" {
		return nil, goerr.New("store-dir or store-bucket is required")
	}
	return adapter.NewLocalStorage(cfg.storeDir)
}

// newStore opens the vector store with its persisted documents
func (cfg *config) newStore(ctx context.Context) (*vectorstore.Store, error) {
	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, err
	}
	return vectorstore.Open(ctx, embedder, storage)
}

// openRetriever opens the vector store for retrieval. A store that cannot be
// reached yields nil so callers draft without similar documents; a store whose
// persisted state is broken or incompatible is an error.
func (cfg *config) openRetriever(ctx context.Context) (*vectorstore.Store, error) {
	store, err := cfg.newStore(ctx)
	switch {
	case err == nil:
		return store, nil
	case errors.Is(err, vectorstore.ErrStorageCorruption),
		errors.Is(err, vectorstore.ErrDimensionMismatch),
		errors.Is(err, vectorstore.ErrEmbeddingModelMismatch):
		return nil, goerr.Wrap(err, "vector store is unusable, run `index clear` or fix the embedding settings")
	default:
		logging.From(ctx).Warn("vector store unavailable, drafting without similar documents", "error", err)
		return nil, nil
	}
}

// newRepository creates the workspace repository and a function releasing it
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, func(), error) {
	switch cfg.repoBackend {
	case "memory":
		return repository.NewMemory(), func() {}, nil

	case "sqlite", "":
		repo, err := repository.NewSQLite(cfg.sqlitePath)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, closer(ctx, repo.Close), nil

	case "firestore":
		if cfg.firestoreProject == "" {
			return nil, nil, goerr.New("firestore-project is required")
		}
		repo, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, closer(ctx, repo.Close), nil

	default:
		return nil, nil, goerr.New("unknown repository backend", goerr.V("repository", cfg.repoBackend))
	}
}

func closer(ctx context.Context, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			logging.From(ctx).Warn("failed to close repository", "error", err)
		}
	}
}

func (cfg *config) newProfiles() (agent.Profiles, error) {
	return agent.LoadProfiles(cfg.agentProfiles)
}

func (cfg *config) newPolicy(ctx context.Context, dir string) (*policy.Engine, error) {
	return policy.New(ctx, dir)
}

// followupFlags configures the follow-up pipeline
type followupFlags struct {
	userName  string
	topK      int64
	maxEvents int64
	mode      string
	strict    bool
}

func (f *followupFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "user-name",
			Usage:       "Sender name used in the email signature",
			Value:       followup.DefaultUserName,
			Sources:     cli.EnvVars("INFLECT_USER_NAME"),
			Destination: &f.userName,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Number of similar documents added to the prompt",
			Value:       3,
			Sources:     cli.EnvVars("INFLECT_TOP_K"),
			Destination: &f.topK,
		},
		&cli.IntFlag{
			Name:        "max-events",
			Usage:       "Number of upcoming calendar events fetched",
			Value:       3,
			Sources:     cli.EnvVars("INFLECT_MAX_EVENTS"),
			Destination: &f.maxEvents,
		},
		&cli.StringFlag{
			Name:        "mode",
			Usage:       "Calendar context: upcoming (all listed events) or resolve (matched event only)",
			Value:       string(followup.ModeUpcoming),
			Sources:     cli.EnvVars("INFLECT_FOLLOWUP_MODE"),
			Destination: &f.mode,
		},
		&cli.BoolFlag{
			Name:        "strict",
			Usage:       "Abort when the meeting log cannot be parsed",
			Sources:     cli.EnvVars("INFLECT_STRICT"),
			Destination: &f.strict,
		},
	}
}

func (f *followupFlags) options() ([]followup.Option, error) {
	mode := followup.Mode(f.mode)
	switch mode {
	case followup.ModeUpcoming, followup.ModeResolve:
	default:
		return nil, goerr.New("invalid mode, use upcoming or resolve", goerr.V("mode", f.mode))
	}

	return []followup.Option{
		followup.WithUserName(f.userName),
		followup.WithTopK(int(f.topK)),
		followup.WithMaxEvents(int(f.maxEvents)),
		followup.WithMode(mode),
		followup.WithStrictParse(f.strict),
	}, nil
}
