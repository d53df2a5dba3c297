//go:build integration

package esgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"

	testfixtures "github.com/kurakura967/go-docstore-testfixtures"
)

var testClient *elasticsearch.Client

func TestMain(m *testing.M) {
	addr := os.Getenv("ELASTICSEARCH_URL")
	if addr == "" {
		addr = "http://localhost:9200"
	}

	var err error
	testClient, err = elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		fmt.Printf("creating ES client: %v\n", err)
		os.Exit(1)
	}

	res, err := testClient.Ping()
	if err != nil {
		fmt.Printf("Elasticsearch not available: %v\n", err)
		os.Exit(1)
	}
	res.Body.Close()

	os.Exit(m.Run())
}

func setupGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()

	g, err := New(testClient, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return g
}

// getIndexMapping retrieves the mapping of the given index.
func getIndexMapping(t *testing.T, index string) map[string]interface{} {
	t.Helper()

	res, err := testClient.Indices.GetMapping(
		testClient.Indices.GetMapping.WithIndex(index),
		testClient.Indices.GetMapping.WithContext(context.Background()),
	)
	if err != nil {
		t.Fatalf("getting mapping for %q: %v", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		t.Fatalf("getting mapping for %q: %s", index, res.Status())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decoding mapping response: %v", err)
	}

	return result
}

func users() testfixtures.Collection {
	return testfixtures.Collection{
		testfixtures.NewDocument(
			testfixtures.Field{Name: "_id", Value: "1"},
			testfixtures.Field{Name: "name", Value: "Alice"},
			testfixtures.Field{Name: "age", Value: 30},
		),
		testfixtures.NewDocument(
			testfixtures.Field{Name: "_id", Value: "2"},
			testfixtures.Field{Name: "name", Value: "Bob"},
			testfixtures.Field{Name: "age", Value: 25},
		),
	}
}

func TestInsertAllAndReadAll_RoundTrip(t *testing.T) {
	ctx := context.Background()
	g := setupGateway(t)
	t.Cleanup(func() { g.Clear(ctx, "users") })

	if err := g.Clear(ctx, "users"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if err := g.InsertAll(ctx, "users", users()); err != nil {
		t.Fatalf("InsertAll() error: %v", err)
	}

	docs, err := g.ReadAll(ctx, "users")
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}

	// _id comes back as the Elasticsearch document ID
	if err := testfixtures.Compare(users(), docs, []string{}); err != nil {
		t.Errorf("Compare() error: %v", err)
	}
}

func TestClear_RemovesIndex(t *testing.T) {
	ctx := context.Background()
	g := setupGateway(t)

	if err := g.InsertAll(ctx, "users", users()); err != nil {
		t.Fatalf("InsertAll() error: %v", err)
	}
	if err := g.Clear(ctx, "users"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	docs, err := g.ReadAll(ctx, "users")
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected 0 documents after Clear(), got %d", len(docs))
	}
}

func TestClear_Idempotent(t *testing.T) {
	ctx := context.Background()
	g := setupGateway(t)

	if err := g.Clear(ctx, "missing_index"); err != nil {
		t.Fatalf("first Clear() error: %v", err)
	}
	if err := g.Clear(ctx, "missing_index"); err != nil {
		t.Fatalf("second Clear() error: %v", err)
	}
}

func TestInsertAll_MappingApplied(t *testing.T) {
	ctx := context.Background()
	g := setupGateway(t, IndexSchema("users",
		json.RawMessage(`{"properties":{"email":{"type":"keyword"}}}`), nil))
	t.Cleanup(func() { g.Clear(ctx, "users") })

	if err := g.Clear(ctx, "users"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if err := g.InsertAll(ctx, "users", users()); err != nil {
		t.Fatalf("InsertAll() error: %v", err)
	}

	mapping := getIndexMapping(t, "users")
	usersMapping, ok := mapping["users"].(map[string]interface{})
	if !ok {
		t.Fatal("expected users index in mapping response")
	}

	mappings, ok := usersMapping["mappings"].(map[string]interface{})
	if !ok {
		t.Fatal("expected mappings in users index")
	}

	properties, ok := mappings["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("expected properties in mappings")
	}

	emailProp, ok := properties["email"].(map[string]interface{})
	if !ok {
		t.Fatal("expected email property")
	}

	if emailType, ok := emailProp["type"].(string); !ok || emailType != "keyword" {
		t.Errorf("expected email type 'keyword', got %v", emailProp["type"])
	}
}

func TestOrchestrator_CheckFailsOnMissingDocument(t *testing.T) {
	g := setupGateway(t)
	t.Cleanup(func() { g.Clear(context.Background(), "users") })

	o, err := testfixtures.New(g)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	expected := append(users()[:1:1], testfixtures.NewDocument(
		testfixtures.Field{Name: "name", Value: "Carol"},
		testfixtures.Field{Name: "age", Value: 41},
	))
	err = o.Run([]testfixtures.Directive{
		testfixtures.Check("users", expected),
		testfixtures.Init("users", users()),
		testfixtures.Clear("users"),
	}, nil)

	var notFound *testfixtures.DocumentNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected DocumentNotFoundError, got %v", err)
	}
	if name, _ := notFound.Document.Get("name"); name != "Carol" {
		t.Errorf("expected Carol to be reported, got %v", notFound.Document)
	}
}
