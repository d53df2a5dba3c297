package testfixtures

import (
	"errors"
	"fmt"
)

// Kind identifies what a Directive does to its collection.
type Kind int

const (
	// KindClear empties the collection before the test body.
	KindClear Kind = iota + 1
	// KindInit seeds the collection from a fixture before the test body.
	KindInit
	// KindCheck compares the collection against a fixture after the test body.
	KindCheck
)

func (k Kind) String() string {
	switch k {
	case KindClear:
		return "clear"
	case KindInit:
		return "init"
	case KindCheck:
		return "check"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DefaultIgnoredFields are excluded from Check comparisons unless a directive
// says otherwise.
var DefaultIgnoredFields = []string{"_id"}

// Directive is a declarative instruction attached to a test.
//
// Init and Check directives carry their fixture either already parsed in
// Fixture or as a File resolved by the Orchestrator when the directive runs.
type Directive struct {
	Kind       Kind
	Collection string
	Fixture    Collection
	File       string

	// IgnoredFields applies to Check only. A nil slice means DefaultIgnoredFields,
	// an empty non-nil slice means every field is compared.
	IgnoredFields []string
}

// Clear returns a directive emptying the named collection.
func Clear(collection string) Directive {
	return Directive{Kind: KindClear, Collection: collection}
}

// Init returns a directive inserting fixture into the named collection.
func Init(collection string, fixture Collection) Directive {
	return Directive{Kind: KindInit, Collection: collection, Fixture: nonNil(fixture)}
}

// InitFile is like Init but reads the fixture from a JSON or YAML file.
func InitFile(collection, file string) Directive {
	return Directive{Kind: KindInit, Collection: collection, File: file}
}

// Check returns a directive asserting the named collection equals fixture.
// Without ignored fields, DefaultIgnoredFields apply.
func Check(collection string, fixture Collection, ignored ...string) Directive {
	return Directive{Kind: KindCheck, Collection: collection, Fixture: nonNil(fixture), IgnoredFields: ignored}
}

// CheckFile is like Check but reads the expected fixture from a file.
func CheckFile(collection, file string, ignored ...string) Directive {
	return Directive{Kind: KindCheck, Collection: collection, File: file, IgnoredFields: ignored}
}

// Ignored returns the effective set of ignored field names.
func (d Directive) Ignored() []string {
	if d.IgnoredFields == nil {
		return DefaultIgnoredFields
	}
	return d.IgnoredFields
}

// Validate reports whether the directive is well formed.
func (d Directive) Validate() error {
	if d.Collection == "" {
		return errors.New("collection name must not be empty")
	}

	switch d.Kind {
	case KindClear:
		return nil
	case KindInit, KindCheck:
		if d.Fixture == nil && d.File == "" {
			return fmt.Errorf("%s %q: fixture or file is required", d.Kind, d.Collection)
		}
		return nil
	default:
		return fmt.Errorf("unknown directive %s", d.Kind)
	}
}

func nonNil(c Collection) Collection {
	if c == nil {
		return Collection{}
	}
	return c
}
