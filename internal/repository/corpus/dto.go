package corpus

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/campuskit/parentassist/internal/domain"
)

// Hash field names of a persisted chunk record.
const (
	fieldContent     = "content"
	fieldFilename    = "filename"
	fieldEmbedding   = "embedding"
	fieldChunkIndex  = "chunk_index"
	fieldTotalChunks = "total_chunks"
)

// buildHashFields converts an embedded chunk into a flat map for HSET.
func buildHashFields(ec domain.EmbeddedChunk) map[string]string {
	return map[string]string{
		fieldContent:     ec.Content,
		fieldFilename:    ec.Filename,
		fieldEmbedding:   vectorToBytes(ec.Embedding),
		fieldChunkIndex:  strconv.Itoa(ec.ChunkIndex),
		fieldTotalChunks: strconv.Itoa(ec.TotalChunks),
	}
}

// parseHashFields converts a flat hash map back into an embedded chunk.
func parseHashFields(m map[string]string) (domain.EmbeddedChunk, error) {
	idx, err := strconv.Atoi(m[fieldChunkIndex])
	if err != nil {
		return domain.EmbeddedChunk{}, fmt.Errorf("invalid chunk_index %q: %w", m[fieldChunkIndex], err)
	}
	total, err := strconv.Atoi(m[fieldTotalChunks])
	if err != nil {
		return domain.EmbeddedChunk{}, fmt.Errorf("invalid total_chunks %q: %w", m[fieldTotalChunks], err)
	}
	vec, err := bytesToVector(m[fieldEmbedding])
	if err != nil {
		return domain.EmbeddedChunk{}, err
	}

	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			Content:     m[fieldContent],
			Filename:    m[fieldFilename],
			ChunkIndex:  idx,
			TotalChunks: total,
		},
		Embedding: vec,
	}, nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) ([]float32, error) {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding data: len=%d (not multiple of 4)", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
