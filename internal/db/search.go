package db

// ScoreField is the alias under which KNN queries return the vector distance.
const ScoreField = "__vector_score"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName   string
	VectorField string
	Vector      []float32
	K           int
	// ReturnFields limits the hash fields returned; empty returns all of them.
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key string
	// Distance is the raw KNN distance reported by the engine (lower is closer).
	Distance float64
	Fields   map[string]string
}

// IndexInfo describes the vector attribute of an FT index.
type IndexInfo struct {
	Name           string
	NumDocs        int
	Dimension      int
	DistanceMetric string
}
