// Package sqlitegateway is an embedded document store for fixtures, keeping
// every document as a JSON body in a SQLite database.
package sqlitegateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"go.mongodb.org/mongo-driver/bson"
	_ "modernc.org/sqlite" // register sqlite driver

	testfixtures "github.com/kurakura967/go-docstore-testfixtures"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT    NOT NULL,
	body       TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS documents_collection ON documents (collection);
`

// Gateway is a testfixtures.Gateway backed by SQLite.
//
// A file database is locked for the lifetime of the Gateway so that only one
// test run at a time can own it.
type Gateway struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open opens (or creates) the database at path. Use MemoryPath for a database
// that lives as long as the Gateway.
func Open(path string) (*Gateway, error) {
	var lock *flock.Flock
	if path != MemoryPath {
		lock = flock.New(path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("sqlitegateway: locking %q: %w", path, err)
		}
		if !locked {
			return nil, fmt.Errorf("sqlitegateway: %q is in use by another test run", path)
		}
	}

	g, err := open(path)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}
	g.lock = lock
	return g, nil
}

func open(path string) (*Gateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitegateway: open sqlite db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitegateway: run schema migrations: %w", err)
	}

	return &Gateway{db: db}, nil
}

// Close releases the database and its lock.
func (g *Gateway) Close() error {
	err := g.db.Close()
	if g.lock != nil {
		err = errors.Join(err, g.lock.Unlock())
	}
	return err
}

// Clear deletes every document of the collection.
func (g *Gateway) Clear(ctx context.Context, collection string) error {
	if _, err := g.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("clear %q: %w", collection, err)
	}
	return nil
}

// InsertAll inserts docs in one transaction. Documents without an "_id" get a
// generated one. Bodies are canonical Extended JSON so dates, ObjectIDs and
// number types read back unchanged.
func (g *Gateway) InsertAll(ctx context.Context, collection string, docs testfixtures.Collection) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert into %q: %w", collection, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (collection, body) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert into %q: %w", collection, err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		body, err := bson.MarshalExtJSON(testfixtures.WithID(doc).BSON(), true, false)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, collection, string(body)); err != nil {
			return fmt.Errorf("insert into %q: %w", collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert into %q: %w", collection, err)
	}
	return nil
}

// ReadAll returns the documents of the collection in insertion order.
func (g *Gateway) ReadAll(ctx context.Context, collection string) (testfixtures.Collection, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT body FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", collection, err)
	}
	defer rows.Close()

	docs := testfixtures.Collection{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %q: %w", collection, err)
		}
		doc, err := testfixtures.ParseJSONDocument([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %q: %w", collection, err)
	}
	return docs, nil
}

// Count returns the number of documents in the collection.
func (g *Gateway) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", collection, err)
	}
	return n, nil
}

var _ testfixtures.Gateway = (*Gateway)(nil)
