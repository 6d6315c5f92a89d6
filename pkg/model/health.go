package model

// Health is the GET /health wire shape. CollectionCount is the number of
// stored chunks and is the authoritative figure after deletions.
type Health struct {
	Status          string `json:"status"`
	RAGInitialized  bool   `json:"rag_initialized"`
	CollectionCount int    `json:"collection_count"`
	OllamaConnected bool   `json:"ollama_connected"`
	ModelName       string `json:"model_name"`
}

// Ready reports whether the backend can answer questions right now.
func (h *Health) Ready() bool {
	return h.RAGInitialized && h.CollectionCount > 0
}

// Stats is the GET /stats wire shape.
type Stats struct {
	TotalChunks    int            `json:"total_chunks"`
	CollectionName string         `json:"collection_name"`
	EmbeddingModel string         `json:"embedding_model"`
	LLMModel       string         `json:"llm_model"`
	Features       map[string]any `json:"features"`
}
