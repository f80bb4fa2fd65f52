package sdk

import (
	"context"
	"net/http"
	"time"
)

// CollectionService administers collections.
type CollectionService struct {
	client *Client
}

// List returns the collection names of the configured database.
func (s *CollectionService) List(ctx context.Context) (_ []string, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("collections_list", start, err) }()

	var resp struct {
		Items []string `json:"items"`
	}
	if _, err = s.client.do(ctx, http.MethodGet, s.client.endpoint(nil, "v1", "collections"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Drop drops a collection. Returns ErrNotFound when it does not exist.
func (s *CollectionService) Drop(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("collections_drop", start, err) }()

	_, err = s.client.do(ctx, http.MethodDelete, s.client.endpoint(nil, "v1", "collections", name), nil, nil)
	return err
}
