// Package esgateway stores fixture collections in Elasticsearch.
// Every collection is an index of the same name.
package esgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.mongodb.org/mongo-driver/bson/primitive"

	testfixtures "github.com/kurakura967/go-docstore-testfixtures"
)

// DefaultMaxDocuments is the number of hits ReadAll requests by default,
// the index.max_result_window default of Elasticsearch.
const DefaultMaxDocuments = 10000

// Gateway is a testfixtures.Gateway backed by an Elasticsearch cluster.
type Gateway struct {
	client       *elasticsearch.Client
	maxDocuments int
	schemas      map[string]indexSchema
}

type indexSchema struct {
	mapping  json.RawMessage
	settings json.RawMessage
}

// Option configures the Gateway.
type Option func(*Gateway)

// MaxDocuments sets how many documents ReadAll returns at most.
func MaxDocuments(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxDocuments = n
		}
	}
}

// IndexSchema sets the mapping and settings used when the index is created.
func IndexSchema(index string, mapping, settings json.RawMessage) Option {
	return func(g *Gateway) {
		g.DefineCollection(index, mapping, settings)
	}
}

// New returns a Gateway using client.
func New(client *elasticsearch.Client, opts ...Option) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("esgateway: client must not be nil")
	}

	g := &Gateway{
		client:       client,
		maxDocuments: DefaultMaxDocuments,
		schemas:      make(map[string]indexSchema),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// DefineCollection records the mapping and settings of an index, applied the
// next time InsertAll creates it.
func (g *Gateway) DefineCollection(name string, mapping, settings json.RawMessage) {
	g.schemas[name] = indexSchema{mapping: mapping, settings: settings}
}

// Clear deletes the index. A missing index is not an error.
func (g *Gateway) Clear(ctx context.Context, collection string) error {
	return deleteIndex(ctx, g.client, collection)
}

// InsertAll creates the index when needed, bulk indexes docs and refreshes
// the index so that they are immediately searchable.
// An "_id" field becomes the Elasticsearch document ID.
func (g *Gateway) InsertAll(ctx context.Context, collection string, docs testfixtures.Collection) error {
	exists, err := indexExists(ctx, g.client, collection)
	if err != nil {
		return err
	}
	if !exists {
		schema := g.schemas[collection]
		if err := createIndex(ctx, g.client, collection, schema.mapping, schema.settings); err != nil {
			return err
		}
	}

	if err := bulkInsertDocuments(ctx, g.client, collection, docs); err != nil {
		return err
	}

	return refreshIndex(ctx, g.client, collection)
}

// ReadAll returns the documents of the index with their ID as "_id".
// An index holding more than the MaxDocuments limit is an error.
func (g *Gateway) ReadAll(ctx context.Context, collection string) (testfixtures.Collection, error) {
	query := fmt.Sprintf(`{"size":%d,"track_total_hits":true,"query":{"match_all":{}}}`, g.maxDocuments)
	res, err := g.client.Search(
		g.client.Search.WithContext(ctx),
		g.client.Search.WithIndex(collection),
		g.client.Search.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return nil, fmt.Errorf("searching index %q: %w", collection, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return testfixtures.Collection{}, nil
	}
	if err := checkResponse(res); err != nil {
		return nil, fmt.Errorf("searching index %q: %w", collection, err)
	}

	return decodeSearchResult(collection, res.Body)
}

type searchResult struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func decodeSearchResult(collection string, body io.Reader) (testfixtures.Collection, error) {
	var result searchResult
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	if total, got := result.Hits.Total.Value, len(result.Hits.Hits); total > got {
		return nil, fmt.Errorf("index %q holds %d documents, only %d were returned: raise MaxDocuments", collection, total, got)
	}

	docs := make(testfixtures.Collection, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		source, err := testfixtures.ParseJSONDocument(hit.Source)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", hit.ID, err)
		}
		fields := append([]testfixtures.Field{{Name: "_id", Value: hit.ID}}, source.Fields()...)
		docs = append(docs, testfixtures.NewDocument(fields...))
	}
	return docs, nil
}

// createIndex creates an Elasticsearch index with the given mapping and settings.
func createIndex(ctx context.Context, client *elasticsearch.Client, name string, mapping, settings json.RawMessage) error {
	body, err := buildCreateIndexBody(mapping, settings)
	if err != nil {
		return fmt.Errorf("building request body: %w", err)
	}

	var opts []func(*esapi.IndicesCreateRequest)
	if body != nil {
		opts = append(opts, client.Indices.Create.WithBody(bytes.NewReader(body)))
	}
	opts = append(opts, client.Indices.Create.WithContext(ctx))

	res, err := client.Indices.Create(name, opts...)
	if err != nil {
		return fmt.Errorf("creating index %q: %w", name, err)
	}
	defer res.Body.Close()

	if err := checkResponse(res); err != nil {
		return fmt.Errorf("creating index %q: %w", name, err)
	}

	return nil
}

// buildCreateIndexBody constructs the JSON body for the Create Index API.
func buildCreateIndexBody(mapping, settings json.RawMessage) ([]byte, error) {
	if mapping == nil && settings == nil {
		return nil, nil
	}

	body := make(map[string]json.RawMessage)
	if mapping != nil {
		body["mappings"] = mapping
	}
	if settings != nil {
		body["settings"] = settings
	}

	return json.Marshal(body)
}

func indexExists(ctx context.Context, client *elasticsearch.Client, name string) (bool, error) {
	res, err := client.Indices.Exists([]string{name},
		client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("checking index %q: %w", name, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("checking index %q: %w", name, checkResponse(res))
	}
}

// deleteIndex deletes an Elasticsearch index.
func deleteIndex(ctx context.Context, client *elasticsearch.Client, name string) error {
	res, err := client.Indices.Delete(
		[]string{name},
		client.Indices.Delete.WithContext(ctx),
		client.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("deleting index %q: %w", name, err)
	}
	defer res.Body.Close()

	if err := checkResponse(res); err != nil {
		return fmt.Errorf("deleting index %q: %w", name, err)
	}

	return nil
}

// bulkInsertDocuments inserts documents into an Elasticsearch index using BulkIndexer.
func bulkInsertDocuments(ctx context.Context, client *elasticsearch.Client, indexName string, docs testfixtures.Collection) error {
	if len(docs) == 0 {
		return nil
	}

	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client: client,
		Index:  indexName,
	})
	if err != nil {
		return fmt.Errorf("creating bulk indexer for %q: %w", indexName, err)
	}

	var (
		mu         sync.Mutex
		bulkErrors []string
	)
	for _, doc := range docs {
		body, err := doc.Without("_id").MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}

		item := esutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(body),
			OnFailure: func(_ context.Context, _ esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					bulkErrors = append(bulkErrors, err.Error())
				} else {
					bulkErrors = append(bulkErrors, fmt.Sprintf("[%d] %s: %s", res.Status, res.Error.Type, res.Error.Reason))
				}
			},
		}

		if id, ok := doc.Get("_id"); ok {
			item.DocumentID = documentID(id)
		}

		if err := indexer.Add(ctx, item); err != nil {
			return fmt.Errorf("adding document to bulk indexer: %w", err)
		}
	}

	if err := indexer.Close(ctx); err != nil {
		return fmt.Errorf("closing bulk indexer for %q: %w", indexName, err)
	}

	if len(bulkErrors) > 0 {
		return fmt.Errorf("bulk insert errors for %q: %s", indexName, strings.Join(bulkErrors, "; "))
	}

	stats := indexer.Stats()
	if stats.NumFailed > 0 {
		return fmt.Errorf("bulk insert for %q: %d documents failed", indexName, stats.NumFailed)
	}

	return nil
}

func documentID(v any) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprintf("%v", v)
}

// refreshIndex forces a refresh on the index so documents are immediately searchable.
func refreshIndex(ctx context.Context, client *elasticsearch.Client, name string) error {
	res, err := client.Indices.Refresh(
		client.Indices.Refresh.WithIndex(name),
		client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("refreshing index %q: %w", name, err)
	}
	defer res.Body.Close()

	if err := checkResponse(res); err != nil {
		return fmt.Errorf("refreshing index %q: %w", name, err)
	}

	return nil
}

// checkResponse checks an Elasticsearch API response for errors.
func checkResponse(res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}

	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("elasticsearch error [%s]: %s", res.Status(), string(body))
}

var (
	_ testfixtures.Gateway       = (*Gateway)(nil)
	_ testfixtures.SchemaDefiner = (*Gateway)(nil)
)
