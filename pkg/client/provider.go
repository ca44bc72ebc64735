package client

import (
	"context"
	"sync"

	"catalog-query-api/pkg/metadata"
)

// SchemaProvider is a metadata.Provider backed by server reflection. Entity
// types are fetched on first use and cached for the lifetime of the
// provider; the catalog schema does not change while a server is running.
type SchemaProvider struct {
	client *Client
	ctx    context.Context

	mu    sync.Mutex
	cache map[string]*metadata.EntityType
}

// NewSchemaProvider builds a provider over c. The context bounds the lookup
// requests the provider makes on cache misses.
func NewSchemaProvider(ctx context.Context, c *Client) *SchemaProvider {
	return &SchemaProvider{
		client: c,
		ctx:    ctx,
		cache:  make(map[string]*metadata.EntityType),
	}
}

// EntityType implements metadata.Provider.
func (p *SchemaProvider) EntityType(name string) (*metadata.EntityType, error) {
	p.mu.Lock()
	if et, ok := p.cache[name]; ok {
		p.mu.Unlock()
		return et, nil
	}
	p.mu.Unlock()

	et, err := p.client.EntityInfo(p.ctx, name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[name] = et
	p.mu.Unlock()
	return et, nil
}
