// Package catalog reads authoritative product prices from the catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/google/uuid"
)

type Product struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price int64     `json:"price"`
}

type Catalog interface {
	Product(ctx context.Context, id uuid.UUID) (*Product, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(catalogServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(catalogServiceURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) Product(ctx context.Context, id uuid.UUID) (*Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/catalog/products/"+id.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("catalog lookup failed with status: %d", resp.StatusCode)
	}

	var p Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if p.Price < 0 {
		return nil, fmt.Errorf("catalog returned negative price for %s", id)
	}
	return &p, nil
}

// Static is a fixed in-memory catalog.
type Static struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product
}

func NewStatic(products ...Product) *Static {
	s := &Static{products: map[uuid.UUID]Product{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *Static) Product(_ context.Context, id uuid.UUID) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return &p, nil
}
