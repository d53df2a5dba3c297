package testfixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaDefiner is implemented by gateways that create collections with an
// explicit schema, such as Elasticsearch mappings and settings.
type SchemaDefiner interface {
	DefineCollection(name string, mapping, settings json.RawMessage)
}

// Loader seeds every collection of a fixtures directory.
// Each sub-directory of the fixtures directory is a collection.
type Loader struct {
	orchestrator *Orchestrator
	gateway      Gateway
	ctx          context.Context
	fixtures     []*CollectionFixture
}

// NewLoader creates a Loader for the gateway. The Directory option is required.
//
// Fixture files are parsed during construction, so any file format errors
// are reported immediately.
func NewLoader(gateway Gateway, opts ...Option) (*Loader, error) {
	o, err := New(gateway, opts...)
	if err != nil {
		return nil, err
	}

	if o.dir == "" {
		return nil, errors.New("testfixtures: Directory option is required")
	}

	fixtures, err := LoadFixtureSet(o.dir)
	if err != nil {
		return nil, fmt.Errorf("testfixtures: %w", err)
	}

	if definer, ok := gateway.(SchemaDefiner); ok {
		for _, f := range fixtures {
			if f.Mapping != nil || f.Settings != nil {
				definer.DefineCollection(f.Name, f.Mapping, f.Settings)
			}
		}
	}

	return &Loader{orchestrator: o, gateway: gateway, ctx: o.ctx, fixtures: fixtures}, nil
}

// Collections returns the names of the managed collections.
func (l *Loader) Collections() []string {
	names := make([]string, 0, len(l.fixtures))
	for _, f := range l.fixtures {
		names = append(names, f.Name)
	}
	return names
}

// Load clears every managed collection and inserts its fixture documents.
func (l *Loader) Load() error {
	directives := make([]Directive, 0, 2*len(l.fixtures))
	for _, f := range l.fixtures {
		directives = append(directives, Clear(f.Name), Init(f.Name, f.Documents))
	}
	return l.orchestrator.Run(directives, nil)
}

// Check compares every managed collection with its fixture documents.
func (l *Loader) Check(ignored ...string) error {
	directives := make([]Directive, 0, len(l.fixtures))
	for _, f := range l.fixtures {
		directives = append(directives, Check(f.Name, f.Documents, ignored...))
	}
	return l.orchestrator.Run(directives, nil)
}

// Clean clears every managed collection, continuing past failures.
func (l *Loader) Clean() error {
	var errs []error
	for _, f := range l.fixtures {
		if err := l.gateway.Clear(l.ctx, f.Name); err != nil {
			errs = append(errs, &GatewayError{Op: "clear", Collection: f.Name, Err: err})
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("testfixtures: cleaning up: %w", errors.Join(errs...))
	}

	return nil
}
