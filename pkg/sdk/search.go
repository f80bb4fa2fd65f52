package sdk

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// SearchService runs searches against one collection.
type SearchService struct {
	client     *Client
	collection string
}

// Do executes the search.
func (s *SearchService) Do(ctx context.Context, req SearchRequest) (_ *SearchResult, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("search", start, err) }()

	body, err := req.body()
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []SearchHit `json:"items"`
	}
	endpoint := s.client.endpoint(nil, "v1", "collections", s.collection, "search")
	header, err := s.client.do(ctx, http.MethodPost, endpoint, body, &resp)
	if err != nil {
		return nil, err
	}

	res := &SearchResult{Hits: resp.Items}
	if v := header.Get(embeddingTokensHeader); v != "" {
		res.EmbeddingTokens, _ = strconv.Atoi(v)
	}
	res.EmbeddingCached = header.Get(embeddingCacheHeader) == "hit"
	return res, nil
}
