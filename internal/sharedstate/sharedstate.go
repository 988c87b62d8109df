// Package sharedstate holds the hot-reloadable components every chat
// turn depends on behind a single atomic pointer, so a config reload
// mid-turn never tears a request: a turn loads one Snapshot at its start
// and uses it throughout, regardless of reloads that happen after.
package sharedstate

import (
	"sync"
	"sync/atomic"

	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/config"
	"github.com/corewire/assistant/internal/embedder"
	"github.com/corewire/assistant/internal/llmprovider"
	"github.com/corewire/assistant/internal/skillset"
	"github.com/corewire/assistant/internal/vectorstore"
	"github.com/corewire/assistant/internal/workingmem"
)

// Snapshot is the copy-on-write set of components a single turn uses.
// Fields may be nil (no embedder/vector store configured yet); callers
// must check before use.
type Snapshot struct {
	Config            *config.Config
	Chain             *llmprovider.Chain
	EmbeddingProvider embedder.Embedder
	VectorStore       *vectorstore.Store
	Registry          *skillset.Registry
	ApprovalOverrides map[string]config.ApprovalPolicy
}

// Holder publishes Snapshots atomically. Readers call Load once per turn
// and keep the returned pointer for the turn's duration; writers build a
// new Snapshot and call Store to swap it in.
type Holder struct {
	ptr atomic.Pointer[Snapshot]

	// WorkingMemory is process-lifetime and never reloaded, so it lives
	// outside the swapped Snapshot.
	WorkingMemory *workingmem.Map

	warnMu   sync.Mutex
	warnings []chatmodel.Warning

	configPath string
}

// NewHolder constructs a Holder seeded with an initial snapshot.
func NewHolder(initial *Snapshot, configPath string) *Holder {
	h := &Holder{
		WorkingMemory: workingmem.New(),
		configPath:    configPath,
	}
	h.ptr.Store(initial)
	return h
}

// Load returns the currently published snapshot.
func (h *Holder) Load() *Snapshot {
	return h.ptr.Load()
}

// Store atomically publishes a new snapshot, replacing whatever turns in
// flight will no longer see — they keep using the Snapshot pointer they
// already loaded.
func (h *Holder) Store(s *Snapshot) {
	h.ptr.Store(s)
}

// ConfigPath returns the on-disk path the active config was loaded from
// (and reload pipelines write back to).
func (h *Holder) ConfigPath() string {
	return h.configPath
}

// SetWarnings replaces the current warning list.
func (h *Holder) SetWarnings(warnings []chatmodel.Warning) {
	h.warnMu.Lock()
	defer h.warnMu.Unlock()
	h.warnings = warnings
}

// Warnings returns a copy of the current warning list.
func (h *Holder) Warnings() []chatmodel.Warning {
	h.warnMu.Lock()
	defer h.warnMu.Unlock()
	out := make([]chatmodel.Warning, len(h.warnings))
	copy(out, h.warnings)
	return out
}
