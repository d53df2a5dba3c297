package testfixtures

import "context"

// Gateway is the store the fixtures are applied to.
//
// Implementations are used sequentially by one Orchestrator at a time: a test
// run owns the gateway for its whole duration and tests that share collection
// names must not run in parallel.
type Gateway interface {
	// Clear removes every document of the collection.
	Clear(ctx context.Context, collection string) error
	// InsertAll inserts docs into the collection.
	InsertAll(ctx context.Context, collection string, docs Collection) error
	// ReadAll returns every document of the collection, in no particular order.
	// A collection that does not exist reads as empty.
	ReadAll(ctx context.Context, collection string) (Collection, error)
}

// ProjectingGateway is implemented by gateways that can exclude fields on the
// store side while reading.
type ProjectingGateway interface {
	Gateway
	ReadAllExcept(ctx context.Context, collection string, ignored []string) (Collection, error)
}
