package testfixtures

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryGateway is an in-process Gateway keeping collections in a map.
// Inserted documents without an "_id" field get a generated one.
type MemoryGateway struct {
	mu          sync.Mutex
	collections map[string]Collection
}

// NewMemoryGateway returns an empty MemoryGateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{collections: make(map[string]Collection)}
}

func (g *MemoryGateway) Clear(_ context.Context, collection string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.collections, collection)
	return nil
}

func (g *MemoryGateway) InsertAll(_ context.Context, collection string, docs Collection) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, doc := range docs {
		g.collections[collection] = append(g.collections[collection], WithID(doc))
	}
	return nil
}

func (g *MemoryGateway) ReadAll(_ context.Context, collection string) (Collection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored := g.collections[collection]
	out := make(Collection, len(stored))
	copy(out, stored)
	return out, nil
}

// WithID returns doc with a generated "_id" placed first when it has none.
func WithID(doc Document) Document {
	if doc.Has("_id") {
		return doc
	}
	fields := append([]Field{{Name: "_id", Value: uuid.NewString()}}, doc.fields...)
	return Document{fields: fields}
}
