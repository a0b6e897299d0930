package embedding

import (
	"fmt"
	"log/slog"
	"sync"
)

// Config names the credentials and overrides considered during backend
// selection.
type Config struct {
	// Backend forces a specific backend: "voyage", "openai", "deepinfra",
	// or "local". "auto" (or empty) selects by available credentials.
	Backend         string
	VoyageAPIKey    string
	OpenAIAPIKey    string
	DeepInfraAPIKey string
	LocalURL        string
}

// Selection is the outcome of backend selection: the provider plus a
// human-readable reason surfaced in logs and stats.
type Selection struct {
	Provider Provider
	Backend  string
	Reason   string
}

// Select resolves an embedding provider. Auto-selection prefers the
// highest-quality backend with a credential present: Voyage, then OpenAI,
// then DeepInfra, then the local server which needs no credential.
func Select(cfg Config, log *slog.Logger) (Selection, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "auto"
	}

	switch backend {
	case "voyage":
		if cfg.VoyageAPIKey == "" {
			return Selection{}, fmt.Errorf("embedding: voyage backend requested but VOYAGE_API_KEY is not set")
		}
		return Selection{NewVoyageProvider(cfg.VoyageAPIKey), "voyage", "explicitly configured"}, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return Selection{}, fmt.Errorf("embedding: openai backend requested but OPENAI_API_KEY is not set")
		}
		return Selection{NewOpenAIProvider(cfg.OpenAIAPIKey), "openai", "explicitly configured"}, nil
	case "deepinfra":
		if cfg.DeepInfraAPIKey == "" {
			return Selection{}, fmt.Errorf("embedding: deepinfra backend requested but DEEPINFRA_API_KEY is not set")
		}
		return Selection{NewDeepInfraProvider(cfg.DeepInfraAPIKey), "deepinfra", "explicitly configured"}, nil
	case "local":
		return Selection{NewLocalProvider(cfg.LocalURL, log), "local", "explicitly configured"}, nil
	case "auto":
	default:
		return Selection{}, fmt.Errorf("embedding: unknown backend %q", backend)
	}

	var sel Selection
	switch {
	case cfg.VoyageAPIKey != "":
		sel = Selection{NewVoyageProvider(cfg.VoyageAPIKey), "voyage", "VOYAGE_API_KEY set, best code retrieval quality"}
	case cfg.OpenAIAPIKey != "":
		sel = Selection{NewOpenAIProvider(cfg.OpenAIAPIKey), "openai", "OPENAI_API_KEY set"}
	case cfg.DeepInfraAPIKey != "":
		sel = Selection{NewDeepInfraProvider(cfg.DeepInfraAPIKey), "deepinfra", "DEEPINFRA_API_KEY set"}
	default:
		sel = Selection{NewLocalProvider(cfg.LocalURL, log), "local", "no API credentials found, using free local embeddings"}
	}

	log.Info("embedding backend selected",
		"backend", sel.Backend,
		"model", sel.Provider.Model(),
		"dimensions", sel.Provider.Dimensions(),
		"reason", sel.Reason,
	)
	return sel, nil
}

// Selector resolves the provider once on first use and reuses it for the
// lifetime of the process.
type Selector struct {
	cfg  Config
	log  *slog.Logger
	once sync.Once
	sel  Selection
	err  error
}

// NewSelector creates a lazy selector over the given credentials.
func NewSelector(cfg Config, log *slog.Logger) *Selector {
	return &Selector{cfg: cfg, log: log}
}

// Get returns the selected provider, performing selection on first call.
func (s *Selector) Get() (Selection, error) {
	s.once.Do(func() {
		s.sel, s.err = Select(s.cfg, s.log)
	})
	return s.sel, s.err
}
