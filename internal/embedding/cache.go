package embedding

import (
	"github.com/dgraph-io/ristretto/v2"
)

// vectorCache memoizes normalized embeddings by text. Every entry costs 1, so
// capacity is a number of texts. Admission is TinyLFU: a new text may be
// dropped when the cache is full of more frequently used ones.
type vectorCache struct {
	c *ristretto.Cache[string, []float32]
}

// newVectorCache returns a cache holding up to capacity texts. A capacity of
// zero or less disables caching.
func newVectorCache(capacity int) (*vectorCache, error) {
	if capacity <= 0 {
		return &vectorCache{}, nil
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters:        int64(capacity) * 10,
		MaxCost:            int64(capacity),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &vectorCache{c: c}, nil
}

// get returns a copy of the cached vector for text.
func (v *vectorCache) get(text string) ([]float32, bool) {
	if v.c == nil {
		return nil, false
	}
	vec, ok := v.c.Get(text)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), vec...), true
}

// set stores a copy of vec and waits until it is visible to get.
func (v *vectorCache) set(text string, vec []float32) {
	if v.c == nil {
		return
	}
	v.c.Set(text, append([]float32(nil), vec...), 1)
	v.c.Wait()
}

func (v *vectorCache) close() {
	if v.c != nil {
		v.c.Close()
	}
}
