package testfixtures

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

const (
	mappingFile  = "_mapping.json"
	settingsFile = "_settings.json"
)

// LoadFixture reads a fixture file holding an array of documents.
// Files ending in .json are MongoDB Extended JSON, .yml and .yaml files are YAML.
// Any failure is reported as a *FixtureUnavailableError.
func LoadFixture(path string) (Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FixtureUnavailableError{Path: path, Err: err}
	}

	var docs Collection
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		docs, err = ParseJSON(data)
	case ".yml", ".yaml":
		docs, err = ParseYAML(data)
	default:
		err = fmt.Errorf("unsupported fixture format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, &FixtureUnavailableError{Path: path, Err: err}
	}

	return docs, nil
}

// ParseJSON parses a JSON array of objects. Extended JSON values such as
// {"$oid": "..."} are decoded to their BSON types.
func ParseJSON(data []byte) (Collection, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, errors.New("fixture must be a JSON array of documents")
	}

	// Extended JSON only decodes documents at the top level.
	wrapped := make([]byte, 0, len(data)+16)
	wrapped = append(wrapped, `{"documents":`...)
	wrapped = append(wrapped, data...)
	wrapped = append(wrapped, '}')

	var raw struct {
		Documents []bson.D `bson:"documents"`
	}
	if err := bson.UnmarshalExtJSON(wrapped, false, &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling JSON: %w", err)
	}

	docs := make(Collection, 0, len(raw.Documents))
	for _, d := range raw.Documents {
		docs = append(docs, FromBSON(d))
	}
	return docs, nil
}

// ParseJSONDocument parses a single JSON object, keeping field order.
func ParseJSONDocument(data []byte) (Document, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return Document{}, fmt.Errorf("unmarshaling JSON document: %w", err)
	}
	return FromBSON(d), nil
}

// ParseYAML parses a YAML sequence of mappings, keeping field order.
func ParseYAML(data []byte) (Collection, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}
	if len(root.Content) == 0 {
		return Collection{}, nil
	}

	seq := resolveAlias(root.Content[0])
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: fixture must be a YAML sequence of documents", seq.Line)
	}

	docs := make(Collection, 0, len(seq.Content))
	for _, item := range seq.Content {
		item = resolveAlias(item)
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: document must be a mapping", item.Line)
		}
		doc, err := yamlDocument(item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func yamlDocument(n *yaml.Node) (Document, error) {
	fields := make([]Field, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		val, err := yamlValue(n.Content[i+1])
		if err != nil {
			return Document{}, fmt.Errorf("field %q: %w", key.Value, err)
		}
		fields = append(fields, Field{Name: key.Value, Value: val})
	}
	return NewDocument(fields...), nil
}

func yamlValue(n *yaml.Node) (any, error) {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.MappingNode:
		return yamlDocument(n)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// LoadFixtureSet scans a fixtures directory where every sub-directory is a
// collection holding document files (*.json, *.yml, *.yaml not starting with "_").
// Files of a collection are read in name order.
func LoadFixtureSet(dir string) ([]*CollectionFixture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures directory %q: %w", dir, err)
	}

	var fixtures []*CollectionFixture
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		f, err := parseCollectionDir(filepath.Join(dir, entry.Name()), entry.Name())
		if err != nil {
			return nil, fmt.Errorf("parsing collection %q: %w", entry.Name(), err)
		}
		fixtures = append(fixtures, f)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no collection directories found in %q", dir)
	}

	return fixtures, nil
}

// parseCollectionDir parses a single collection directory.
func parseCollectionDir(dir string, name string) (*CollectionFixture, error) {
	f := &CollectionFixture{Name: name, Documents: Collection{}}

	mapping, err := readJSONFile(filepath.Join(dir, mappingFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", mappingFile, err)
	}
	f.Mapping = mapping

	settings, err := readJSONFile(filepath.Join(dir, settingsFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", settingsFile, err)
	}
	f.Settings = settings

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %q: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") || !isFixtureFile(name) {
			continue
		}

		docs, err := LoadFixture(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		f.Documents = append(f.Documents, docs...)
	}

	return f, nil
}

func isFixtureFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yml", ".yaml":
		return true
	}
	return false
}

// readJSONFile reads a JSON file and returns its content as json.RawMessage.
// The os.ReadFile error is returned unchanged so callers can test os.IsNotExist.
func readJSONFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON in %q", path)
	}

	return json.RawMessage(data), nil
}
