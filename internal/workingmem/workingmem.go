// Package workingmem implements the per-conversation scratchpad: a small
// key/value and notes store that lives only in process memory and is
// gone on restart, grounded on original_source's
// buddy-server/src/skill/working_memory.rs WorkingMemoryMap.
package workingmem

import (
	"sort"
	"sync"

	"github.com/corewire/assistant/internal/chatmodel"
)

// Map is a mutex-guarded, per-conversation-id map of scratchpads. The
// lock granularity is the whole map rather than per-entry: scratchpad
// operations are cheap map mutations, not I/O, so a single mutex held for
// the duration of one operation is simple and sufficiently fast (per
// spec.md §4.5/§9's design note).
type Map struct {
	mu      sync.Mutex
	entries map[string]*chatmodel.WorkingMemory
}

// New creates an empty scratchpad map.
func New() *Map {
	return &Map{entries: make(map[string]*chatmodel.WorkingMemory)}
}

// Get returns a copy of the scratchpad for conversationID, or a zero
// value if none exists yet.
func (m *Map) Get(conversationID string) chatmodel.WorkingMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	wm := m.entries[conversationID]
	if wm == nil {
		return chatmodel.WorkingMemory{}
	}
	return cloneWorkingMemory(*wm)
}

// Set stores a key/value pair.
func (m *Map) Set(conversationID, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wm := m.entryLocked(conversationID)
	if wm.Values == nil {
		wm.Values = make(map[string]string)
	}
	wm.Values[key] = value
}

// Note appends a free-form note.
func (m *Map) Note(conversationID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wm := m.entryLocked(conversationID)
	wm.Notes = append(wm.Notes, text)
}

// Delete removes a key, reporting whether it existed.
func (m *Map) Delete(conversationID, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	wm := m.entries[conversationID]
	if wm == nil {
		return false
	}
	_, existed := wm.Values[key]
	delete(wm.Values, key)
	return existed
}

// Clear wipes a conversation's scratchpad.
func (m *Map) Clear(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, conversationID)
}

// Value returns a single key's value, if present.
func (m *Map) Value(conversationID, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wm := m.entries[conversationID]
	if wm == nil {
		return "", false
	}
	v, ok := wm.Values[key]
	return v, ok
}

func (m *Map) entryLocked(conversationID string) *chatmodel.WorkingMemory {
	wm := m.entries[conversationID]
	if wm == nil {
		wm = &chatmodel.WorkingMemory{Values: make(map[string]string)}
		m.entries[conversationID] = wm
	}
	return wm
}

func cloneWorkingMemory(wm chatmodel.WorkingMemory) chatmodel.WorkingMemory {
	out := chatmodel.WorkingMemory{Notes: append([]string(nil), wm.Notes...)}
	if wm.Values != nil {
		out.Values = make(map[string]string, len(wm.Values))
		for k, v := range wm.Values {
			out.Values[k] = v
		}
	}
	return out
}

// SortedKeys returns a scratchpad's keys in deterministic (sorted) order.
func SortedKeys(wm chatmodel.WorkingMemory) []string {
	keys := make([]string, 0, len(wm.Values))
	for k := range wm.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
