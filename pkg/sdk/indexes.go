package sdk

import (
	"context"
	"net/http"
	"time"
)

// IndexService administers the regular and search indexes of one collection.
type IndexService struct {
	client     *Client
	collection string
}

// List returns the regular indexes.
func (s *IndexService) List(ctx context.Context) (_ []Index, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("indexes_list", start, err) }()

	var resp struct {
		Items []Index `json:"items"`
	}
	endpoint := s.client.endpoint(nil, "v1", "collections", s.collection, "indexes")
	if _, err = s.client.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Drop drops a regular index by name.
func (s *IndexService) Drop(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("indexes_drop", start, err) }()

	endpoint := s.client.endpoint(nil, "v1", "collections", s.collection, "indexes", name)
	_, err = s.client.do(ctx, http.MethodDelete, endpoint, nil, nil)
	return err
}

// Hide hides an index from the query planner without dropping it.
func (s *IndexService) Hide(ctx context.Context, name string) error {
	return s.setHidden(ctx, "indexes_hide", name, true)
}

// Unhide makes a hidden index visible to the query planner again.
func (s *IndexService) Unhide(ctx context.Context, name string) error {
	return s.setHidden(ctx, "indexes_unhide", name, false)
}

func (s *IndexService) setHidden(ctx context.Context, op, name string, hidden bool) (err error) {
	start := time.Now()
	defer func() { s.client.obs.observe(op, start, err) }()

	endpoint := s.client.endpoint(nil, "v1", "collections", s.collection, "indexes", name)
	body := struct {
		Hidden bool `json:"hidden"`
	}{Hidden: hidden}
	_, err = s.client.do(ctx, http.MethodPatch, endpoint, body, nil)
	return err
}

// ListSearch returns the Atlas search and vectorSearch indexes.
// Returns ErrSearchNotSupported against deployments without Atlas search.
func (s *IndexService) ListSearch(ctx context.Context) (_ []SearchIndex, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("search_indexes_list", start, err) }()

	var resp struct {
		Items []SearchIndex `json:"items"`
	}
	endpoint := s.client.endpoint(nil, "v1", "collections", s.collection, "search-indexes")
	if _, err = s.client.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// DropSearch requests a search index drop. Atlas completes the drop asynchronously.
func (s *IndexService) DropSearch(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("search_indexes_drop", start, err) }()

	endpoint := s.client.endpoint(nil, "v1", "collections", s.collection, "search-indexes", name)
	_, err = s.client.do(ctx, http.MethodDelete, endpoint, nil, nil)
	return err
}
