package skillset

import (
	"net/http"
	"time"

	"github.com/corewire/assistant/internal/config"
	"github.com/corewire/assistant/internal/embedder"
	"github.com/corewire/assistant/internal/workingmem"
)

// BuildConfig carries the components Build wires into the returned
// registry. Embed/Store may be nil, in which case the memory skills
// (remember/recall) are not registered — mirrors original_source's
// build_registry, generalized to also gate the memory skills on
// embedder/store presence rather than always registering them.
type BuildConfig struct {
	Skills   config.SkillsConfig
	Embedder embedder.Embedder
	Store    interface {
		VectorWriter
		VectorSearcher
	}
	WorkingMemory *workingmem.Map
}

// Build constructs a Registry from configuration, registering only the
// skills whose section is present (read_file/write_file/fetch_url) plus
// the memory skills whenever their dependencies are available.
func Build(cfg BuildConfig) (*Registry, error) {
	reg := NewRegistry()

	if cfg.Skills.ReadFile != nil {
		if err := reg.Register(&ReadFileSkill{AllowedDirectories: cfg.Skills.ReadFile.AllowedDirectories}); err != nil {
			return nil, err
		}
	}
	if cfg.Skills.WriteFile != nil {
		if err := reg.Register(&WriteFileSkill{AllowedDirectories: cfg.Skills.WriteFile.AllowedDirectories}); err != nil {
			return nil, err
		}
	}
	if cfg.Skills.FetchURL != nil {
		if err := reg.Register(&FetchURLSkill{
			AllowedDomains: cfg.Skills.FetchURL.AllowedDomains,
			Client:         &http.Client{Timeout: 10 * time.Second},
		}); err != nil {
			return nil, err
		}
	}

	if cfg.Embedder != nil && cfg.Store != nil {
		if err := reg.Register(&RememberSkill{Embedder: cfg.Embedder, Store: cfg.Store}); err != nil {
			return nil, err
		}
		if err := reg.Register(&RecallSkill{Embedder: cfg.Embedder, Store: cfg.Store}); err != nil {
			return nil, err
		}
	}

	if cfg.WorkingMemory != nil {
		if err := reg.Register(&MemoryWriteSkill{Map: cfg.WorkingMemory}); err != nil {
			return nil, err
		}
		if err := reg.Register(&MemoryReadSkill{Map: cfg.WorkingMemory}); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// ApprovalFor returns the configured approval policy for a mutating or
// network skill, if the config section sets one.
func ApprovalFor(cfg config.SkillsConfig, skillName string) *config.ApprovalPolicy {
	switch skillName {
	case "read_file":
		if cfg.ReadFile != nil {
			return cfg.ReadFile.Approval
		}
	case "write_file":
		if cfg.WriteFile != nil {
			return cfg.WriteFile.Approval
		}
	case "fetch_url":
		if cfg.FetchURL != nil {
			return cfg.FetchURL.Approval
		}
	}
	return nil
}
