package model

// Record is one stored unit of the vector index: an embedding plus the
// text excerpt and source filename it was computed from. Records are
// written once during ingestion and never mutated.
type Record struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"-"`
	Text     string    `json:"text"`
	Filename string    `json:"filename"`
}

// Match is one retrieval hit: the stored excerpt and its similarity
// score as reported by the vector store (higher is closer).
type Match struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// IngestResult reports what an ingestion stored.
type IngestResult struct {
	Filename string   `json:"filename"`
	ChunkIDs []string `json:"chunk_ids"`
}

type AskRequest struct {
	Prompt string `json:"prompt"`
}

type AskResponse struct {
	Text string `json:"text"`
}
