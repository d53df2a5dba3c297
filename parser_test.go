package testfixtures

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLoadFixtureSet(t *testing.T) {
	fixtures, err := LoadFixtureSet("testdata/fixtures")
	if err != nil {
		t.Fatalf("LoadFixtureSet() error: %v", err)
	}

	if len(fixtures) != 2 {
		t.Fatalf("expected 2 fixtures, got %d", len(fixtures))
	}

	fixtureMap := make(map[string]*CollectionFixture)
	for _, f := range fixtures {
		fixtureMap[f.Name] = f
	}

	t.Run("users collection", func(t *testing.T) {
		users, ok := fixtureMap["users"]
		if !ok {
			t.Fatal("users fixture not found")
		}

		if users.Mapping == nil {
			t.Error("expected mapping to be non-nil")
		}
		if users.Settings == nil {
			t.Error("expected settings to be non-nil")
		}
		if len(users.Documents) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(users.Documents))
		}

		// _id stays a regular field
		if id, _ := users.Documents[0].Get("_id"); id != int64(1) {
			t.Errorf("expected first document _id to be 1, got %v", id)
		}

		// Field order follows the file
		fields := users.Documents[0].Fields()
		if fields[1].Name != "name" || fields[1].Value != "Alice" {
			t.Errorf("expected second field name=Alice, got %v", fields[1])
		}
	})

	t.Run("products collection", func(t *testing.T) {
		products, ok := fixtureMap["products"]
		if !ok {
			t.Fatal("products fixture not found")
		}

		if products.Mapping == nil {
			t.Error("expected mapping to be non-nil")
		}
		// products has no _settings.json
		if products.Settings != nil {
			t.Error("expected settings to be nil for products")
		}

		// 2 docs from 001_electronics.json + 1 doc from 002_books.yml, in file order
		if len(products.Documents) != 3 {
			t.Fatalf("expected 3 documents, got %d", len(products.Documents))
		}
		if id, _ := products.Documents[2].Get("_id"); id != "p3" {
			t.Errorf("expected last document to be p3, got %v", id)
		}
	})
}

func TestLoadFixtureSet_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFixtureSet(dir)
	if err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestLoadFixtureSet_NonExistentDirectory(t *testing.T) {
	_, err := LoadFixtureSet("/nonexistent/path")
	if err == nil {
		t.Fatal("expected error for non-existent directory")
	}
}

func TestLoadFixtureSet_InvalidMappingJSON(t *testing.T) {
	dir := t.TempDir()
	collDir := filepath.Join(dir, "bad_collection")
	if err := os.Mkdir(collDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(collDir, "_mapping.json"), []byte("{invalid}"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFixtureSet(dir)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadFixtureSet_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	collDir := filepath.Join(dir, "bad_collection")
	if err := os.Mkdir(collDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(collDir, "documents.yml"), []byte("not: [valid: yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFixtureSet(dir)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadFixtureSet_NoMappingOrSettings(t *testing.T) {
	dir := t.TempDir()
	collDir := filepath.Join(dir, "plain")
	if err := os.Mkdir(collDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(collDir, "documents.yml"), []byte("- name: test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fixtures, err := LoadFixtureSet(dir)
	if err != nil {
		t.Fatalf("LoadFixtureSet() error: %v", err)
	}

	if len(fixtures) != 1 {
		t.Fatalf("expected 1 fixture, got %d", len(fixtures))
	}
	if fixtures[0].Mapping != nil {
		t.Error("expected mapping to be nil")
	}
	if fixtures[0].Settings != nil {
		t.Error("expected settings to be nil")
	}
	if len(fixtures[0].Documents) != 1 {
		t.Errorf("expected 1 document, got %d", len(fixtures[0].Documents))
	}
}

func TestLoadFixture_JSON(t *testing.T) {
	docs, err := LoadFixture("testdata/data/users_init.json")
	if err != nil {
		t.Fatalf("LoadFixture() error: %v", err)
	}

	if len(docs) != 5 {
		t.Fatalf("expected 5 documents, got %d", len(docs))
	}
	if got := docs[0].String(); got != `{ "lastname" : "DOE" , "firstname" : "John"}` {
		t.Errorf("unexpected first document %s", got)
	}
}

func TestLoadFixture_ExtendedJSON(t *testing.T) {
	docs, err := LoadFixture("testdata/data/users_extended.json")
	if err != nil {
		t.Fatalf("LoadFixture() error: %v", err)
	}

	doc := docs[0]
	id, _ := doc.Get("_id")
	if _, ok := id.(primitive.ObjectID); !ok {
		t.Errorf("expected _id to be an ObjectID, got %T", id)
	}

	born, _ := doc.Get("born")
	if bornAt, ok := born.(time.Time); !ok || bornAt.Year() != 2008 {
		t.Errorf("expected born to be a 2008 date, got %v", born)
	}

	family, _ := doc.Get("family")
	members, ok := family.([]any)
	if !ok || len(members) != 2 {
		t.Fatalf("expected 2 family members, got %v", family)
	}
	if _, ok := members[0].(Document); !ok {
		t.Errorf("expected nested documents, got %T", members[0])
	}
}

func TestLoadFixture_MissingFile(t *testing.T) {
	_, err := LoadFixture("testdata/data/missing.json")
	if !errors.Is(err, ErrFixtureUnavailable) {
		t.Fatalf("expected ErrFixtureUnavailable, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected the not-exist cause to be kept, got %v", err)
	}
}

func TestLoadFixture_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	if err := os.WriteFile(path, []byte("lastname,firstname\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFixture(path)
	if !errors.Is(err, ErrFixtureUnavailable) {
		t.Fatalf("expected ErrFixtureUnavailable, got %v", err)
	}
}

func TestParseJSON_NotAnArray(t *testing.T) {
	if _, err := ParseJSON([]byte(`{"lastname": "WHITE"}`)); err == nil {
		t.Fatal("expected error for a JSON object")
	}
	if _, err := ParseJSON([]byte(`[1, 2]`)); err == nil {
		t.Fatal("expected error for an array of scalars")
	}
}

func TestParseYAML_KeepsFieldOrderAndNesting(t *testing.T) {
	data := []byte(`
- zeta: 1
  alpha:
    inner: [a, b]
  mid: true
`)
	docs, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("ParseYAML() error: %v", err)
	}

	want := `{ "zeta" : 1 , "alpha" : { "inner" : [ "a" , "b"]} , "mid" : true}`
	if got := docs[0].String(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestParseYAML_Empty(t *testing.T) {
	docs, err := ParseYAML(nil)
	if err != nil {
		t.Fatalf("ParseYAML() error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}
