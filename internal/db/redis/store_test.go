package redis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/faqsearch/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected deadline to stay visible through the wrapper")
	}
}

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s, sub string
		want   bool
	}{
		{"Index Already Exists", "index already exists", true},
		{"UNKNOWN INDEX NAME", "unknown index name", true},
		{"hello world", "world", true},
		{"short", "longer than input", false},
		{"exact", "exact", true},
		{"", "", true},
		{"notempty", "", true},
	}
	for _, tc := range tests {
		got := containsIgnoreCase(tc.s, tc.sub)
		if got != tc.want {
			t.Errorf("containsIgnoreCase(%q, %q) = %v, want %v", tc.s, tc.sub, got, tc.want)
		}
	}
}

// --- search.go tests ---

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "faq:idx" &&
				cmd[2] == "*=>[KNN 2 @embedding $BLOB AS __vector_score]"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2), // total
			mock.RedisString("faq:1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.1"),
				mock.RedisString("source"),
				mock.RedisString("policy.md"),
			),
			mock.RedisString("faq:2"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.4"),
				mock.RedisString("source"),
				mock.RedisString("shipping.md"),
			),
		)))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:   "faq:idx",
		VectorField: "embedding",
		Vector:      []float32{0.1, 0.2},
		K:           2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 || len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got total=%d entries=%d", result.Total, len(result.Entries))
	}
	first := result.Entries[0]
	if first.Key != "faq:1" {
		t.Errorf("expected key faq:1, got %s", first.Key)
	}
	if first.Distance != 0.1 {
		t.Errorf("expected raw distance 0.1, got %f", first.Distance)
	}
	if _, ok := first.Fields["__vector_score"]; ok {
		t.Error("score field should be removed from fields")
	}
	if first.Fields["source"] != "policy.md" {
		t.Errorf("unexpected source: %q", first.Fields["source"])
	}
}

func TestBuildKNNArgs(t *testing.T) {
	args, err := buildKNNArgs(&db.KNNQuery{
		IndexName:    "idx",
		Vector:       []float32{1, 2},
		K:            25,
		ReturnFields: []string{"source", "content"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(args[:len(args)-5], " ")

	if !strings.Contains(joined, "@vector $BLOB") {
		t.Errorf("expected default vector field, got %q", joined)
	}
	if !strings.Contains(joined, "RETURN 3 source content __vector_score") {
		t.Errorf("expected score field appended to RETURN, got %q", joined)
	}
	if !strings.Contains(joined, "LIMIT 0 25") {
		t.Errorf("expected LIMIT 0 25, got %q", joined)
	}
	if args[len(args)-2] != "DIALECT" || args[len(args)-1] != "2" {
		t.Errorf("expected DIALECT 2 at the end, got %v", args[len(args)-2:])
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx",
		Vector:    []float32{0.1},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(result.Entries))
	}
}

func TestSearchKNN_MissingScoreIsMalformed(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("faq:1"),
			mock.RedisArray(mock.RedisString("source"), mock.RedisString("a.md")),
		)))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 1})
	if !errors.Is(err, db.ErrMalformedReply) {
		t.Fatalf("expected malformed reply, got %v", err)
	}
}

func TestSearchKNN_ServerErrors(t *testing.T) {
	tests := []struct {
		reply string
		want  error
	}{
		{"faq:idx: no such index", db.ErrIndexNotFound},
		{"Unknown Index name", db.ErrIndexNotFound},
		{"Error parsing vector similarity query: query vector blob size (8) does not match index's expected size (16).", db.ErrDimensionMismatch},
		{"NOAUTH Authentication required.", db.ErrAuth},
		{"WRONGPASS invalid username-password pair", db.ErrAuth},
		{"LOADING Redis is loading the dataset in memory", db.ErrBusy},
		{"Unknown field at offset 10 near vector", db.ErrServerReply},
		{"Syntax error at offset 3 near KNN", db.ErrServerReply},
		{"WRONGTYPE Operation against a key holding the wrong kind of value", db.ErrServerReply},
	}
	for _, tc := range tests {
		t.Run(tc.reply, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)

			c.EXPECT().
				Do(gomock.Any(), gomock.Any()).
				Return(mock.Result(mock.RedisError(tc.reply)))

			s := NewStoreForTest(c)
			_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 1})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !isDBError(err) {
				t.Errorf("expected db.Error, got %T", err)
			}
		})
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	_, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, K: 10})
	if err == nil {
		t.Error("expected error for empty index name")
	}

	_, err = s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", K: 10})
	if err == nil {
		t.Error("expected error for empty vector")
	}

	_, err = s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 0})
	if err == nil {
		t.Error("expected error for k=0")
	}
}

func TestVectorToBytes(t *testing.T) {
	v := []float32{1.0, 2.0}
	b := vectorToBytes(v)
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

// --- index.go tests ---

func TestIndexInfo_RedisLayout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "faq:idx")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("faq:idx"),
			mock.RedisString("attributes"), mock.RedisArray(
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("source"),
					mock.RedisString("attribute"), mock.RedisString("source"),
					mock.RedisString("type"), mock.RedisString("TAG"),
				),
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("vector"),
					mock.RedisString("attribute"), mock.RedisString("vector"),
					mock.RedisString("type"), mock.RedisString("VECTOR"),
					mock.RedisString("algorithm"), mock.RedisString("HNSW"),
					mock.RedisString("dim"), mock.RedisInt64(1024),
					mock.RedisString("distance_metric"), mock.RedisString("COSINE"),
				),
			),
			mock.RedisString("num_docs"), mock.RedisString("42"),
		)))

	s := NewStoreForTest(c)
	info, err := s.IndexInfo(context.Background(), "faq:idx", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Dimension != 1024 {
		t.Errorf("expected dim 1024, got %d", info.Dimension)
	}
	if info.DistanceMetric != "COSINE" {
		t.Errorf("expected COSINE, got %q", info.DistanceMetric)
	}
	if info.NumDocs != 42 {
		t.Errorf("expected 42 docs, got %d", info.NumDocs)
	}
}

func TestIndexInfo_ValkeyNestedLayout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "faq:idx")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("attributes"), mock.RedisArray(
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("embedding"),
					mock.RedisString("type"), mock.RedisString("VECTOR"),
					mock.RedisString("index"), mock.RedisArray(
						mock.RedisString("dimensions"), mock.RedisInt64(384),
						mock.RedisString("distance_metric"), mock.RedisString("l2"),
					),
				),
			),
		)))

	s := NewStoreForTest(c)
	info, err := s.IndexInfo(context.Background(), "faq:idx", "embedding")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Dimension != 384 || info.DistanceMetric != "L2" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestIndexInfo_MissingVectorField(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("attributes"), mock.RedisArray(),
		)))

	s := NewStoreForTest(c)
	_, err := s.IndexInfo(context.Background(), "faq:idx", "vector")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected index not found, got %v", err)
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
