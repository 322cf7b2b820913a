package db

import (
	"context"
	"time"
)

// Store is the read-only vector store facade used by the retrieval pipeline.
type Store interface {
	Pinger
	Searcher
	IndexInspector
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher provides nearest-neighbour search over an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// IndexInspector reads index metadata via FT.INFO.
type IndexInspector interface {
	IndexInfo(ctx context.Context, index, vectorField string) (*IndexInfo, error)
}
