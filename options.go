package testfixtures

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Option configures the Orchestrator.
type Option func(*Orchestrator) error

// Directory sets the directory relative fixture files are resolved against.
// If not set, paths are relative to the working directory.
func Directory(dir string) Option {
	return func(o *Orchestrator) error {
		o.dir = dir
		return nil
	}
}

// WithContext sets the context for store gateway operations.
// If not set, context.Background() is used.
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) error {
		if ctx == nil {
			return errors.New("context must not be nil")
		}
		o.ctx = ctx
		return nil
	}
}

// WithLogger sets the logger directives are reported to.
// If not set, nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithFixtureLoader replaces LoadFixture for directives referencing a file.
func WithFixtureLoader(load func(path string) (Collection, error)) Option {
	return func(o *Orchestrator) error {
		if load == nil {
			return errors.New("fixture loader must not be nil")
		}
		o.load = load
		return nil
	}
}
