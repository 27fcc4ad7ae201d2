// Package corpus persists embedded document chunks in the store.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/campuskit/parentassist/internal/domain"
)

// store is the consumer interface for the corpus (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the corpus contracts of the ingest and answer use cases.
// Each embedded chunk lives under one hash key derived from its identity
// (filename, chunkIndex, content), which makes re-ingestion idempotent.
type Repo struct {
	store  store
	prefix string
}

// New creates a corpus repository. keyPrefix namespaces all keys
// (e.g. "parentassist:").
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix + "chunk:"}
}

// Has reports whether a chunk with the same identity is already persisted.
func (r *Repo) Has(ctx context.Context, c domain.Chunk) (bool, error) {
	exists, err := r.store.Exists(ctx, r.chunkKey(c))
	if err != nil {
		return false, fmt.Errorf("check chunk %s[%d]: %w: %w", c.Filename, c.ChunkIndex, domain.ErrStoreUnavailable, err)
	}
	return exists, nil
}

// Put persists an embedded chunk. Writing the same chunk twice overwrites the
// identical record, so Put never duplicates.
func (r *Repo) Put(ctx context.Context, ec domain.EmbeddedChunk) error {
	if err := r.store.HSet(ctx, r.chunkKey(ec.Chunk), buildHashFields(ec)); err != nil {
		return fmt.Errorf("store chunk %s[%d]: %w: %w", ec.Filename, ec.ChunkIndex, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Count returns the number of persisted chunks.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return len(keys), nil
}

// List returns all persisted chunks ordered by filename then chunk index.
func (r *Repo) List(ctx context.Context) ([]domain.EmbeddedChunk, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w: %w", domain.ErrStoreUnavailable, err)
	}

	chunks := make([]domain.EmbeddedChunk, 0, len(hashes))
	for i, m := range hashes {
		if len(m) == 0 {
			// Key deleted between SCAN and HGETALL.
			continue
		}
		ec, err := parseHashFields(m)
		if err != nil {
			return nil, fmt.Errorf("parse chunk %s: %w", keys[i], err)
		}
		chunks = append(chunks, ec)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Filename != chunks[j].Filename {
			return chunks[i].Filename < chunks[j].Filename
		}
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})

	return chunks, nil
}

// chunkKey derives the deduplication key from the chunk identity.
func (r *Repo) chunkKey(c domain.Chunk) string {
	h := sha256.New()
	h.Write([]byte(c.Filename))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(c.ChunkIndex)))
	h.Write([]byte{0})
	h.Write([]byte(c.Content))
	return r.prefix + hex.EncodeToString(h.Sum(nil))
}
