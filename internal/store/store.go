// Package store opens the gateway selected by the configuration.
package store

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	testfixtures "github.com/kurakura967/go-docstore-testfixtures"
	"github.com/kurakura967/go-docstore-testfixtures/esgateway"
	"github.com/kurakura967/go-docstore-testfixtures/internal/config"
	"github.com/kurakura967/go-docstore-testfixtures/mongogateway"
	"github.com/kurakura967/go-docstore-testfixtures/sqlitegateway"
)

// CloseFunc releases the resources held by an opened gateway.
type CloseFunc func() error

func noClose() error { return nil }

// Open connects to the backend named by cfg.Backend.
func Open(ctx context.Context, cfg *config.Config) (testfixtures.Gateway, CloseFunc, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		g, err := sqlitegateway.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil

	case config.BackendMongoDB:
		g, err := mongogateway.Connect(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database)
		if err != nil {
			return nil, nil, err
		}
		return g, func() error { return g.Close(context.Background()) }, nil

	case config.BackendElasticsearch:
		client, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: cfg.Elasticsearch.Addresses,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating elasticsearch client: %w", err)
		}
		g, err := esgateway.New(client)
		if err != nil {
			return nil, nil, err
		}
		return g, noClose, nil

	case config.BackendMemory:
		return testfixtures.NewMemoryGateway(), noClose, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
