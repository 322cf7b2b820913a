package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/faqsearch/internal/db"
)

// IndexInfo reads the vector attribute's dimension and metric via FT.INFO.
// Both the Redis (flat) and Valkey (nested "index" block) reply layouts are understood.
func (s *Store) IndexInfo(ctx context.Context, index, vectorField string) (*db.IndexInfo, error) {
	if vectorField == "" {
		vectorField = defaultVectorField
	}

	cmd := s.b().Arbitrary("FT.INFO").Args(index).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrapErr(db.OpIndexInfo, err)
	}

	info := &db.IndexInfo{Name: index}
	found := false
	for i := 0; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		switch strings.ToLower(key) {
		case "num_docs":
			if n, err := raw[i+1].AsInt64(); err == nil {
				info.NumDocs = int(n)
			}
		case "attributes", "fields":
			attrs, err := raw[i+1].ToArray()
			if err != nil {
				return nil, fmt.Errorf("%w: attributes: %v", db.ErrMalformedReply, err)
			}
			for j := range attrs {
				fields, err := attrs[j].ToArray()
				if err != nil || !isAttribute(fields, vectorField) {
					continue
				}
				readVectorParams(fields, info)
				found = true
			}
		}
	}

	if !found {
		return nil, fmt.Errorf("%w: index %s has no vector field %q", db.ErrIndexNotFound, index, vectorField)
	}
	return info, nil
}

func isAttribute(pairs []rueidis.RedisMessage, name string) bool {
	for i := 0; i+1 < len(pairs); i += 2 {
		key, err := pairs[i].ToString()
		if err != nil {
			continue
		}
		if key != "identifier" && key != "attribute" {
			continue
		}
		if v, err := pairs[i+1].ToString(); err == nil && (v == name || v == "$."+name) {
			return true
		}
	}
	return false
}

func readVectorParams(pairs []rueidis.RedisMessage, info *db.IndexInfo) {
	for i := 0; i+1 < len(pairs); i += 2 {
		if nested, err := pairs[i+1].ToArray(); err == nil {
			readVectorParams(nested, info)
			continue
		}
		key, err := pairs[i].ToString()
		if err != nil {
			continue
		}
		switch strings.ToLower(key) {
		case "dim", "dimensions":
			if n, err := pairs[i+1].AsInt64(); err == nil {
				info.Dimension = int(n)
			}
		case "distance_metric":
			if v, err := pairs[i+1].ToString(); err == nil {
				info.DistanceMetric = strings.ToUpper(v)
			}
		}
	}
}
