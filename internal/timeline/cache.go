package timeline

import (
	"encoding/binary"
	"hash/fnv"
	"slices"
	"sync"

	"github.com/0x0BSoD/constellation/internal/model"
)

// Cache memoizes the last layout computed by an engine. Any change to the
// input, including a changed timestamp, an added or removed post or a
// different order, invalidates it.
type Cache struct {
	engine *Engine

	mu          sync.Mutex
	fingerprint uint64
	valid       bool
	layout      []PlottedPost
}

func NewCache(engine *Engine) *Cache {
	return &Cache{engine: engine}
}

func (c *Cache) Engine() *Engine {
	return c.engine
}

// ComputeLayout returns a copy of the cached layout when posts match the
// previous call and computes a fresh one otherwise.
func (c *Cache) ComputeLayout(posts []model.Post) []PlottedPost {
	fp := fingerprint(posts)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid || c.fingerprint != fp {
		c.layout = c.engine.ComputeLayout(posts)
		c.fingerprint = fp
		c.valid = true
	}

	return slices.Clone(c.layout)
}

func fingerprint(posts []model.Post) uint64 {
	h := fnv.New64a()

	var buf [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		_, _ = h.Write(buf[:])
		_, _ = h.Write([]byte(s))
	}

	for _, post := range posts {
		writeString(post.ID)
		writeString(post.Title)
		writeString(post.Content)
		writeString(post.MediaURL)
		writeString(post.VideoURL)
		writeString(post.ExternalURL)

		binary.LittleEndian.PutUint64(buf[:], uint64(post.CreatedAt.UnixNano()))
		_, _ = h.Write(buf[:])

		if post.NewTab {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
	}

	return h.Sum64()
}
