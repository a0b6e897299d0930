package repotoire

import (
	"log/slog"

	"github.com/repotoire/repotoire/internal/config"
)

// Option configures a Client.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger          *slog.Logger
	cfg             *config.Config
	decisionLogPath string
	store           GraphStore
	embedder        EmbeddingProvider
	llm             LLM
	reranker        Reranker
	sandbox         Sandbox
	accountant      Accountant
}

// WithLogger sets the structured logger. If not set, the default slog
// logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithConfig replaces environment-based configuration entirely. The config
// is still validated.
func WithConfig(cfg Config) Option {
	return func(o *resolvedOptions) { o.cfg = &cfg }
}

// WithDecisionLogPath overrides where human fix decisions are appended
// (REPOTOIRE_DECISION_LOG env var).
func WithDecisionLogPath(path string) Option {
	return func(o *resolvedOptions) { o.decisionLogPath = path }
}

// WithGraphStore replaces the built-in graph client. The configured dialect
// still controls query syntax, so the store must speak that dialect.
func WithGraphStore(s GraphStore) Option {
	return func(o *resolvedOptions) { o.store = s }
}

// WithEmbedder replaces the auto-selected embedding backend.
func WithEmbedder(p EmbeddingProvider) Option {
	return func(o *resolvedOptions) { o.embedder = p }
}

// WithLLM replaces the configured Anthropic/OpenAI client.
func WithLLM(c LLM) Option {
	return func(o *resolvedOptions) { o.llm = c }
}

// WithReranker replaces the Voyage cross-encoder and enables reranking.
func WithReranker(r Reranker) Option {
	return func(o *resolvedOptions) { o.reranker = r }
}

// WithSandbox replaces the local temp-dir sandbox used for fix
// verification.
func WithSandbox(s Sandbox) Option {
	return func(o *resolvedOptions) { o.sandbox = s }
}

// WithAccountant replaces the in-memory entitlement accountant. Production
// deployments back this with their billing system.
func WithAccountant(a Accountant) Option {
	return func(o *resolvedOptions) { o.accountant = a }
}
