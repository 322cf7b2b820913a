package result

// Candidate is a raw nearest-neighbour match returned by the vector store.
// Score is the store's similarity, higher is more relevant.
type Candidate struct {
	ID      string
	Score   float64
	Source  string
	Content string
}

// Result is a single public search hit.
type Result struct {
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
}
