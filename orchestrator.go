package testfixtures

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// Orchestrator applies the directives of a test around its body.
//
// Whatever order directives are given in, they run as: every Clear, every
// Init, the body, every Check. Directives of the same kind keep their relative
// order.
type Orchestrator struct {
	gateway Gateway
	dir     string
	ctx     context.Context
	logger  *zap.Logger
	load    func(path string) (Collection, error)
}

// New creates a new Orchestrator working on the given gateway.
func New(gateway Gateway, opts ...Option) (*Orchestrator, error) {
	if gateway == nil {
		return nil, errors.New("testfixtures: gateway must not be nil")
	}

	o := &Orchestrator{
		gateway: gateway,
		ctx:     context.Background(),
		logger:  zap.NewNop(),
		load:    LoadFixture,
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("testfixtures: applying option: %w", err)
		}
	}

	return o, nil
}

// pipeline holds directives bucketed by kind.
type pipeline struct {
	clears []Directive
	inits  []Directive
	checks []Directive
}

func plan(directives []Directive) pipeline {
	var p pipeline
	for _, d := range directives {
		switch d.Kind {
		case KindClear:
			p.clears = append(p.clears, d)
		case KindInit:
			p.inits = append(p.inits, d)
		case KindCheck:
			p.checks = append(p.checks, d)
		}
	}
	return p
}

// Run executes directives around body.
//
// A failing Clear or Init stops the run before the body. An error returned by
// body is returned unchanged and no Check runs. All Checks run after a
// successful body; the first failure is returned and later ones are logged.
func (o *Orchestrator) Run(directives []Directive, body func() error) error {
	for i, d := range directives {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("testfixtures: directive %d: %w", i, err)
		}
	}

	p := plan(directives)
	o.logger.Debug("running fixtures",
		zap.Int("clear", len(p.clears)),
		zap.Int("init", len(p.inits)),
		zap.Int("check", len(p.checks)))

	for _, d := range p.clears {
		if err := o.clear(d); err != nil {
			return &DirectiveError{Kind: d.Kind, Collection: d.Collection, Err: err}
		}
	}

	for _, d := range p.inits {
		if err := o.init(d); err != nil {
			return &DirectiveError{Kind: d.Kind, Collection: d.Collection, Err: err}
		}
	}

	if body != nil {
		if err := body(); err != nil {
			return err
		}
	}

	var first error
	for _, d := range p.checks {
		err := o.check(d)
		if err == nil {
			continue
		}
		if first == nil {
			first = &DirectiveError{Kind: d.Kind, Collection: d.Collection, Err: err}
			continue
		}
		o.logger.Error("additional check failure",
			zap.String("collection", d.Collection),
			zap.Error(err))
	}

	return first
}

func (o *Orchestrator) clear(d Directive) error {
	o.logger.Info("clearing collection", zap.String("collection", d.Collection))

	if err := o.gateway.Clear(o.ctx, d.Collection); err != nil {
		return &GatewayError{Op: "clear", Collection: d.Collection, Err: err}
	}
	return nil
}

func (o *Orchestrator) init(d Directive) error {
	o.logger.Info("initializing collection",
		zap.String("collection", d.Collection),
		zap.String("file", d.File))

	docs, err := o.fixture(d)
	if err != nil {
		return err
	}

	if err := o.gateway.InsertAll(o.ctx, d.Collection, docs); err != nil {
		return &GatewayError{Op: "insert into", Collection: d.Collection, Err: err}
	}
	return nil
}

func (o *Orchestrator) check(d Directive) error {
	ignored := d.Ignored()
	o.logger.Info("checking collection",
		zap.String("collection", d.Collection),
		zap.String("file", d.File),
		zap.Strings("ignored", ignored))

	expected, err := o.fixture(d)
	if err != nil {
		return err
	}

	var actual Collection
	if pg, ok := o.gateway.(ProjectingGateway); ok {
		actual, err = pg.ReadAllExcept(o.ctx, d.Collection, ignored)
	} else {
		actual, err = o.gateway.ReadAll(o.ctx, d.Collection)
	}
	if err != nil {
		return &GatewayError{Op: "read", Collection: d.Collection, Err: err}
	}

	return Compare(expected, actual, ignored)
}

// fixture returns the documents of an Init or Check directive, reading its
// file when the fixture was not given inline.
func (o *Orchestrator) fixture(d Directive) (Collection, error) {
	if d.Fixture != nil {
		return d.Fixture, nil
	}

	path := d.File
	if o.dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(o.dir, path)
	}

	docs, err := o.load(path)
	if err != nil {
		if errors.Is(err, ErrFixtureUnavailable) {
			return nil, err
		}
		return nil, &FixtureUnavailableError{Path: path, Err: err}
	}
	return docs, nil
}
