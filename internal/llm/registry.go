package llm

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/config"
)

// PurposeSpec is the per-purpose request shape shared by every provider.
type PurposeSpec struct {
	System string
	Schema *Schema
}

type registryKey struct {
	provider string
	purpose  Purpose
}

// Registry owns one Client per (provider, purpose). It is built once at
// startup and passed to the services that need it.
type Registry struct {
	defaultProvider string
	clients         map[registryKey]*Client
	failures        map[string]error
}

// NewRegistry resolves every supported provider from cfg. Providers whose
// configuration is incomplete are remembered with their configuration error,
// which is returned whenever a client for them is requested.
func NewRegistry(cfg *config.Config, specs map[Purpose]PurposeSpec, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		defaultProvider: cfg.DefaultProvider,
		clients:         make(map[registryKey]*Client),
		failures:        make(map[string]error),
	}

	for _, name := range config.Providers() {
		settings, err := cfg.Provider(name)
		if err != nil {
			r.failures[name] = err
			logger.Debug("LLM provider unavailable", zap.String("provider", name), zap.Error(err))
			continue
		}
		r.Register(newBackend(settings), settings, specs, logger)
	}
	return r
}

func newBackend(settings config.ProviderSettings) Backend {
	if settings.Name == config.ProviderAnthropic {
		return NewAnthropic(settings)
	}
	return NewOpenAI(settings)
}

// Register installs clients for every purpose in specs on top of backend,
// replacing any existing ones for the same provider.
func (r *Registry) Register(backend Backend, settings config.ProviderSettings, specs map[Purpose]PurposeSpec, logger *zap.Logger) {
	provider := backend.Name()
	delete(r.failures, provider)
	for purpose, spec := range specs {
		temperature := settings.Temperature
		if purpose == PurposeNarrative {
			temperature = settings.NarrativeTemperature
		}
		r.clients[registryKey{provider, purpose}] = NewClient(backend, purpose,
			WithSystem(spec.System),
			WithSchema(spec.Schema),
			WithTemperature(temperature),
			WithMaxTokens(settings.MaxOutputTokens),
			WithTimeout(settings.Timeout),
			WithLogger(logger.Named("llm")),
		)
	}
}

// Resolve returns the client for provider and purpose. An empty provider
// selects the configured default.
func (r *Registry) Resolve(provider string, purpose Purpose) (Completer, error) {
	c, err := r.Client(provider, purpose)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Registry) Client(provider string, purpose Purpose) (*Client, error) {
	provider = config.NormalizeProvider(provider)
	if provider == "" {
		provider = r.defaultProvider
	}
	if c, ok := r.clients[registryKey{provider, purpose}]; ok {
		return c, nil
	}
	if err, ok := r.failures[provider]; ok {
		return nil, err
	}
	for key := range r.clients {
		if key.provider == provider {
			return nil, fmt.Errorf("no %s client registered for %s", purpose, provider)
		}
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, provider)
}

// Extractor returns the rubric-extraction client for provider.
func (r *Registry) Extractor(provider string) (*Client, error) {
	return r.Client(provider, PurposeExtraction)
}

// Scorer returns the criterion-scoring client for provider.
func (r *Registry) Scorer(provider string) (*Client, error) {
	return r.Client(provider, PurposeScoring)
}

func (r *Registry) DefaultProvider() string { return r.defaultProvider }

// Available lists providers with at least one registered client.
func (r *Registry) Available() []string {
	seen := make(map[string]bool)
	var out []string
	for key := range r.clients {
		if !seen[key.provider] {
			seen[key.provider] = true
			out = append(out, key.provider)
		}
	}
	sort.Strings(out)
	return out
}
