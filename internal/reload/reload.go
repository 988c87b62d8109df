// Package reload rebuilds the hot-reloadable runtime components (provider
// chain, embedder, vector store, skill registry, approval overrides) from
// a Config and swaps them into a sharedstate.Holder. Grounded directly on
// buddy-server/src/reload.rs's build_provider_chain/build_embedder/
// build_vector_store/build_skill_registry/refresh_warnings and
// api/config.rs's validate_*/atomic_write/apply_config_update.
package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/corewire/assistant/internal/config"
	"github.com/corewire/assistant/internal/embedder"
	"github.com/corewire/assistant/internal/llmprovider"
	"github.com/corewire/assistant/internal/sharedstate"
	"github.com/corewire/assistant/internal/skillset"
	"github.com/corewire/assistant/internal/vectorstore"
	"github.com/corewire/assistant/internal/chatmodel"
)

// FieldError names one invalid config field, for surfacing validation
// failures to an HTTP caller.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects the FieldErrors found while validating a
// config section. The zero value (nil Errors) is never returned by the
// Validate* functions below; check len(errs) == 0 instead of a nil error.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
}

var validProviderTypes = map[string]bool{"openai": true, "lmstudio": true, "ollama": true, "gemini": true}

func validateProvider(p config.ProviderEntry, prefix string, i int) []FieldError {
	var errs []FieldError
	if !validProviderTypes[p.Type] {
		errs = append(errs, FieldError{
			Field:   fmt.Sprintf("%s[%d].type", prefix, i),
			Message: fmt.Sprintf("unknown provider type %q; expected openai, lmstudio, ollama, or gemini", p.Type),
		})
	}
	if p.Model == "" {
		errs = append(errs, FieldError{Field: fmt.Sprintf("%s[%d].model", prefix, i), Message: "must not be empty"})
	}
	return errs
}

// ValidateModels checks models.chat.providers and models.embedding.providers.
func ValidateModels(models config.ModelsConfig) []FieldError {
	var errs []FieldError
	if len(models.Chat.Providers) == 0 {
		errs = append(errs, FieldError{Field: "models.chat.providers", Message: "must not be empty"})
	}
	for i, p := range models.Chat.Providers {
		errs = append(errs, validateProvider(p, "models.chat.providers", i)...)
	}
	if models.Embedding != nil {
		for i, p := range models.Embedding.Providers {
			errs = append(errs, validateProvider(p, "models.embedding.providers", i)...)
		}
	}
	return errs
}

// ValidateServer checks server.port is bindable.
func ValidateServer(server config.ServerConfig) []FieldError {
	var errs []FieldError
	if server.Port < 1 || server.Port > 65535 {
		errs = append(errs, FieldError{Field: "server.port", Message: "must be between 1 and 65535"})
	}
	return errs
}

// ValidateSkills checks that every allowed directory for read_file/write_file
// exists, and that fetch_url's allowed domains are non-empty.
func ValidateSkills(skills config.SkillsConfig) []FieldError {
	var errs []FieldError
	if skills.ReadFile != nil {
		for i, dir := range skills.ReadFile.AllowedDirectories {
			if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("skills.read_file.allowed_directories[%d]", i),
					Message: fmt.Sprintf("%q does not exist or is not a directory", dir),
				})
			}
		}
	}
	if skills.WriteFile != nil {
		for i, dir := range skills.WriteFile.AllowedDirectories {
			if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("skills.write_file.allowed_directories[%d]", i),
					Message: fmt.Sprintf("%q does not exist or is not a directory", dir),
				})
			}
		}
	}
	if skills.FetchURL != nil {
		for i, domain := range skills.FetchURL.AllowedDomains {
			if domain == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("skills.fetch_url.allowed_domains[%d]", i),
					Message: "must not be empty",
				})
			}
		}
	}
	return errs
}

// atomicWrite writes content to a temp file beside path, then renames it
// into place, so a crash mid-write never leaves a truncated config file.
func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, ".config.yaml.tmp")
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// BuildProviderChain constructs a Chain from cfg.Models.Chat.Providers in
// order. An unresolvable API key for a provider type that requires one is
// a config error, not a runtime one — it fails the reload rather than
// surfacing as a provider-chain fallback.
func BuildProviderChain(ctx context.Context, cfg config.Config) (*llmprovider.Chain, error) {
	var providers []llmprovider.Provider
	for _, entry := range cfg.Models.Chat.Providers {
		apiKey, err := entry.ResolveAPIKey()
		if err != nil {
			return nil, &ValidationError{Errors: []FieldError{{Field: "models.chat.providers", Message: err.Error()}}}
		}
		if entry.RequiresAPIKey() && apiKey == "" {
			return nil, &ValidationError{Errors: []FieldError{{
				Field:   "models.chat.providers",
				Message: fmt.Sprintf("an API key is required when type = %q", entry.Type),
			}}}
		}

		switch entry.Type {
		case "openai", "lmstudio", "ollama":
			providers = append(providers, llmprovider.NewOpenAICompat(llmprovider.OpenAICompatConfig{
				APIKey:  apiKey,
				BaseURL: entry.Endpoint,
				Model:   entry.Model,
				Label:   entry.Type + ":" + entry.Model,
			}))
		case "gemini":
			g, err := llmprovider.NewGemini(ctx, llmprovider.GeminiConfig{APIKey: apiKey, Model: entry.Model, Label: "gemini:" + entry.Model})
			if err != nil {
				return nil, fmt.Errorf("reload: gemini provider init: %w", err)
			}
			providers = append(providers, g)
		default:
			return nil, &ValidationError{Errors: []FieldError{{
				Field:   "models.chat.providers",
				Message: fmt.Sprintf("unknown provider type %q", entry.Type),
			}}}
		}
	}
	return llmprovider.NewChain(providers...), nil
}

// BuildEmbedder constructs the optional embedding provider from
// models.embedding. Returns (nil, nil) when no embedding slot is configured.
func BuildEmbedder(cfg config.Config) (embedder.Embedder, error) {
	if cfg.Models.Embedding == nil || len(cfg.Models.Embedding.Providers) == 0 {
		return nil, nil
	}
	entry := cfg.Models.Embedding.Providers[0]
	apiKey, err := entry.ResolveAPIKey()
	if err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "models.embedding.providers", Message: err.Error()}}}
	}

	switch entry.Type {
	case "openai":
		return embedder.NewOpenAI(embedder.OpenAIConfig{APIKey: apiKey, BaseURL: entry.Endpoint, Model: entry.Model})
	case "ollama":
		return embedder.NewOllama(embedder.OllamaConfig{BaseURL: entry.Endpoint, Model: entry.Model}, ollamaDimensionFor(entry.Model)), nil
	default:
		return nil, &ValidationError{Errors: []FieldError{{
			Field:   "models.embedding.providers[0].type",
			Message: fmt.Sprintf("unknown embedding provider type %q; expected openai or ollama", entry.Type),
		}}}
	}
}

// ollamaDimensionFor reports the known output dimension for common Ollama
// embedding models. Config does not carry a dimension field since Ollama
// has no way to report it itself; unrecognized models fall back to
// nomic-embed-text's 768, the Ollama default embedding model.
func ollamaDimensionFor(model string) int {
	switch model {
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 768
	}
}

// BuildVectorStore opens the vector store at dbPath when an embedder is
// present, sized to the embedder's model name and dimension.
func BuildVectorStore(emb embedder.Embedder, dbPath string) (*vectorstore.Store, error) {
	if emb == nil {
		return nil, nil
	}
	return vectorstore.Open(vectorstore.Config{
		Path:       dbPath,
		ModelName:  emb.ModelName(),
		Dimensions: emb.Dimension(),
	})
}

// BuildApprovalOverrides extracts the per-skill approval policy overrides
// configured under the skills section.
func BuildApprovalOverrides(skills config.SkillsConfig) map[string]config.ApprovalPolicy {
	overrides := make(map[string]config.ApprovalPolicy)
	for _, name := range []string{"read_file", "write_file", "fetch_url"} {
		if policy := skillset.ApprovalFor(skills, name); policy != nil {
			overrides[name] = *policy
		}
	}
	return overrides
}

// RefreshWarnings re-derives the set of config-related warnings from the
// current state of the hot-reloadable components, replacing (not
// appending to) any warnings from a previous reload.
func RefreshWarnings(providerCount int, emb embedder.Embedder, vs *vectorstore.Store) []chatmodel.Warning {
	var warnings []chatmodel.Warning

	if emb == nil {
		warnings = append(warnings, chatmodel.Warning{
			Code:     "no_embedding_model",
			Message:  "No embedding model configured — memory features are disabled. Add a models.embedding section to the config.",
			Severity: chatmodel.SeverityWarning,
		})
	}
	if emb != nil && vs == nil {
		warnings = append(warnings, chatmodel.Warning{
			Code:     "no_vector_store",
			Message:  "Vector store failed to initialize — long-term memory is unavailable.",
			Severity: chatmodel.SeverityWarning,
		})
	}
	if providerCount == 1 {
		warnings = append(warnings, chatmodel.Warning{
			Code:     "single_chat_provider",
			Message:  "Only one chat provider configured — no fallback available. Add additional models.chat.providers entries for redundancy.",
			Severity: chatmodel.SeverityInfo,
		})
	}
	if vs != nil && vs.NeedsMigration() {
		warnings = append(warnings, chatmodel.Warning{
			Code:     "embedding_dimension_mismatch",
			Message:  "Stored embeddings don't match the current model — run POST /api/memory/migrate to re-embed.",
			Severity: chatmodel.SeverityWarning,
		})
	}
	return warnings
}

// Apply validates cfg, rebuilds every hot-reloadable component, persists
// cfg to configPath (if non-empty) via write-temp-then-rename, and
// atomically swaps the new snapshot into holder. On any validation or
// build error, holder is left untouched and the old components stay
// active.
func Apply(ctx context.Context, cfg config.Config, configPath, vectorDBPath string, holder *sharedstate.Holder) error {
	var errs []FieldError
	errs = append(errs, ValidateModels(cfg.Models)...)
	errs = append(errs, ValidateServer(cfg.Server)...)
	errs = append(errs, ValidateSkills(cfg.Skills)...)
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	chain, err := BuildProviderChain(ctx, cfg)
	if err != nil {
		return err
	}
	emb, err := BuildEmbedder(cfg)
	if err != nil {
		return err
	}
	vs, err := BuildVectorStore(emb, vectorDBPath)
	if err != nil {
		return fmt.Errorf("reload: vector store init: %w", err)
	}
	buildCfg := skillset.BuildConfig{Skills: cfg.Skills, WorkingMemory: holder.WorkingMemory}
	if emb != nil && vs != nil {
		// Guard against assigning a nil *vectorstore.Store into the Store
		// interface field: a nil concrete pointer boxed in a non-nil
		// interface value would make skillset.Build's "cfg.Store != nil"
		// check pass even though there is no real store.
		buildCfg.Embedder = emb
		buildCfg.Store = vs
	}
	registry, err := skillset.Build(buildCfg)
	if err != nil {
		return fmt.Errorf("reload: skill registry build: %w", err)
	}
	overrides := BuildApprovalOverrides(cfg.Skills)

	if configPath != "" {
		encoded, err := config.Serialize(cfg)
		if err != nil {
			return fmt.Errorf("reload: serialize config: %w", err)
		}
		if err := atomicWrite(configPath, encoded); err != nil {
			return fmt.Errorf("reload: %w", err)
		}
	}

	cfgCopy := cfg
	holder.Store(&sharedstate.Snapshot{
		Config:            &cfgCopy,
		Chain:             chain,
		EmbeddingProvider: emb,
		VectorStore:       vs,
		Registry:          registry,
		ApprovalOverrides: overrides,
	})
	holder.SetWarnings(RefreshWarnings(len(cfg.Models.Chat.Providers), emb, vs))

	return nil
}
