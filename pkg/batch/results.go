package batch

import (
	"sort"
	"sync"

	"github.com/menta2k/listing-studio/pkg/types"
)

// ResultSet maps preset ids to encoded renders. Re-applying a preset
// overwrites its entry; entries are only removed by Clear.
type ResultSet struct {
	mu    sync.RWMutex
	items map[string]types.EncodedImage
}

func NewResultSet() *ResultSet {
	return &ResultSet{items: make(map[string]types.EncodedImage)}
}

func (r *ResultSet) Put(id string, img types.EncodedImage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = img
}

// Merge adds every entry of m.
func (r *ResultSet) Merge(m map[string]types.EncodedImage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, img := range m {
		r.items[id] = img
	}
}

func (r *ResultSet) Get(id string) (types.EncodedImage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	img, ok := r.items[id]
	return img, ok
}

// Keys returns the stored preset ids in sorted order.
func (r *ResultSet) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.items))
	for id := range r.items {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}

func (r *ResultSet) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Snapshot returns a copy of the current entries.
func (r *ResultSet) Snapshot() map[string]types.EncodedImage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]types.EncodedImage, len(r.items))
	for id, img := range r.items {
		out[id] = img
	}
	return out
}

func (r *ResultSet) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]types.EncodedImage)
}
