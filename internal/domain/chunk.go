package domain

// DefaultChunkSize is the chunk length used when no size is configured.
const DefaultChunkSize = 1000

// Document is a source file read once during ingestion. It is not persisted;
// only its chunks are.
type Document struct {
	Filename string
	Text     string
}

// Chunk is a bounded slice of a document's text, the unit of retrieval.
// Concatenating all chunks of a document in ChunkIndex order reconstructs
// the original text exactly.
type Chunk struct {
	Content     string
	Filename    string
	ChunkIndex  int
	TotalChunks int
}

// EmbeddedChunk is a chunk with its embedding vector, as persisted in the
// corpus store. Identity is (Filename, ChunkIndex, Content).
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
}

// Split cuts text into consecutive non-overlapping segments of at most size
// runes. The final segment may be shorter. Empty input yields no segments.
// A non-positive size falls back to DefaultChunkSize.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	segments := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[start:end]))
	}
	return segments
}

// ChunkDocument splits a document into chunks carrying source metadata.
func ChunkDocument(doc Document, size int) []Chunk {
	segments := Split(doc.Text, size)
	chunks := make([]Chunk, len(segments))
	for i, content := range segments {
		chunks[i] = Chunk{
			Content:     content,
			Filename:    doc.Filename,
			ChunkIndex:  i,
			TotalChunks: len(segments),
		}
	}
	return chunks
}
