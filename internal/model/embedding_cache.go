package model

// EmbeddingCache is one memoized embedding call. Dimension is part of
// the key: after a model reconfiguration changes the vector width, old
// rows must miss rather than serve vectors the index would reject.
type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Dimension   int       `json:"dimension"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
