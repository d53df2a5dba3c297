package testfixtures

import "encoding/json"

// CollectionFixture is the fixture data of one collection read from a
// fixtures directory.
type CollectionFixture struct {
	Name      string          // Directory name = collection name
	Documents Collection      // Documents from every fixture file, in file name order
	Mapping   json.RawMessage // Contents of _mapping.json (may be nil)
	Settings  json.RawMessage // Contents of _settings.json (may be nil)
}
