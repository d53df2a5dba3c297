// Package mongogateway stores fixture collections in MongoDB.
package mongogateway

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	testfixtures "github.com/kurakura967/go-docstore-testfixtures"
)

// Gateway is a testfixtures.ProjectingGateway backed by a MongoDB database.
type Gateway struct {
	db     *mongo.Database
	client *mongo.Client // set when the gateway owns the connection
}

// New returns a Gateway working on db. The caller keeps ownership of the client.
func New(db *mongo.Database) (*Gateway, error) {
	if db == nil {
		return nil, errors.New("mongogateway: database must not be nil")
	}
	return &Gateway{db: db}, nil
}

// Connect opens a client on uri, checks the server is reachable and returns a
// Gateway on the named database. Close disconnects the client.
func Connect(ctx context.Context, uri, database string) (*Gateway, error) {
	if database == "" {
		return nil, errors.New("mongogateway: database name must not be empty")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongogateway: connecting to %q: %w", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongogateway: pinging %q: %w", uri, err)
	}

	return &Gateway{db: client.Database(database), client: client}, nil
}

// Database returns the database the gateway works on.
func (g *Gateway) Database() *mongo.Database { return g.db }

// Close disconnects the client opened by Connect. It is a no-op for gateways
// created with New.
func (g *Gateway) Close(ctx context.Context) error {
	if g.client == nil {
		return nil
	}
	return g.client.Disconnect(ctx)
}

// Clear drops the collection.
func (g *Gateway) Clear(ctx context.Context, collection string) error {
	if err := g.db.Collection(collection).Drop(ctx); err != nil {
		return fmt.Errorf("dropping %q: %w", collection, err)
	}
	return nil
}

// InsertAll inserts docs in order. The server assigns an ObjectID "_id" to
// documents that have none.
func (g *Gateway) InsertAll(ctx context.Context, collection string, docs testfixtures.Collection) error {
	if len(docs) == 0 {
		return nil
	}

	batch := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		batch = append(batch, doc.BSON())
	}

	_, err := g.db.Collection(collection).InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	if err != nil {
		return fmt.Errorf("inserting into %q: %w", collection, err)
	}
	return nil
}

// ReadAll returns every document of the collection.
func (g *Gateway) ReadAll(ctx context.Context, collection string) (testfixtures.Collection, error) {
	return g.find(ctx, collection, options.Find())
}

// ReadAllExcept returns every document of the collection with the ignored
// fields excluded by a find projection.
func (g *Gateway) ReadAllExcept(ctx context.Context, collection string, ignored []string) (testfixtures.Collection, error) {
	opts := options.Find()
	if len(ignored) > 0 {
		opts.SetProjection(ignoredFieldsProjection(ignored))
	}
	return g.find(ctx, collection, opts)
}

func (g *Gateway) find(ctx context.Context, collection string, opts *options.FindOptions) (testfixtures.Collection, error) {
	cursor, err := g.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("finding in %q: %w", collection, err)
	}

	var raw []bson.D
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("reading %q: %w", collection, err)
	}

	docs := make(testfixtures.Collection, 0, len(raw))
	for _, d := range raw {
		docs = append(docs, testfixtures.FromBSON(d))
	}
	return docs, nil
}

// ignoredFieldsProjection builds the {field: 0, ...} projection excluding
// every ignored field.
func ignoredFieldsProjection(ignored []string) bson.D {
	projection := make(bson.D, 0, len(ignored))
	seen := make(map[string]struct{}, len(ignored))
	for _, name := range ignored {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		projection = append(projection, bson.E{Key: name, Value: 0})
	}
	return projection
}

var _ testfixtures.ProjectingGateway = (*Gateway)(nil)
