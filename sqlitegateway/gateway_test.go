package sqlitegateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	testfixtures "github.com/kurakura967/go-docstore-testfixtures"
)

func openMemory(t *testing.T) *Gateway {
	t.Helper()

	g, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func user(lastname, firstname string) testfixtures.Document {
	return testfixtures.NewDocument(
		testfixtures.Field{Name: "lastname", Value: lastname},
		testfixtures.Field{Name: "firstname", Value: firstname},
	)
}

func TestInsertAllAndReadAll(t *testing.T) {
	ctx := context.Background()
	g := openMemory(t)

	nested := testfixtures.NewDocument(
		testfixtures.Field{Name: "name", Value: "Walt"},
		testfixtures.Field{Name: "age", Value: 50},
		testfixtures.Field{Name: "score", Value: 1.5},
		testfixtures.Field{Name: "active", Value: true},
		testfixtures.Field{Name: "tags", Value: []any{"chemistry", "teacher"}},
		testfixtures.Field{Name: "address", Value: map[string]any{"city": "Albuquerque", "zip": 87104}},
		testfixtures.Field{Name: "nickname", Value: nil},
	)
	require.NoError(t, g.InsertAll(ctx, "users", testfixtures.Collection{nested}))

	docs, err := g.ReadAll(ctx, "users")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.True(t, docs[0].Has("_id"), "a generated _id is stored")
	assert.True(t, docs[0].Without("_id").Equal(nested), "got %v", docs[0])
}

func TestInitThenCheck_KeepsExtendedTypes(t *testing.T) {
	g := openMemory(t)

	fixture, err := testfixtures.ParseJSON([]byte(`[{
		"name": "Walt",
		"born": {"$date": "1958-09-07T00:00:00Z"},
		"ref": {"$oid": "5f1d7a3e9c1b2a0012345678"},
		"visits": {"$numberLong": "3"},
		"score": 2.0
	}]`))
	require.NoError(t, err)

	o, err := testfixtures.New(g)
	require.NoError(t, err)

	err = o.Run([]testfixtures.Directive{
		testfixtures.Clear("users"),
		testfixtures.Init("users", fixture),
		testfixtures.Check("users", fixture),
	}, nil)
	require.NoError(t, err)

	docs, err := g.ReadAll(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	born, _ := docs[0].Get("born")
	assert.IsType(t, time.Time{}, born)
	ref, _ := docs[0].Get("ref")
	assert.IsType(t, primitive.ObjectID{}, ref)
}

func TestReadAll_KeepsExistingID(t *testing.T) {
	ctx := context.Background()
	g := openMemory(t)

	doc := testfixtures.NewDocument(
		testfixtures.Field{Name: "_id", Value: "u1"},
		testfixtures.Field{Name: "name", Value: "Jesse"},
	)
	require.NoError(t, g.InsertAll(ctx, "users", testfixtures.Collection{doc}))

	docs, err := g.ReadAll(ctx, "users")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Equal(doc))
}

func TestReadAll_MissingCollectionIsEmpty(t *testing.T) {
	g := openMemory(t)

	docs, err := g.ReadAll(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestClear_OnlyTouchesNamedCollection(t *testing.T) {
	ctx := context.Background()
	g := openMemory(t)

	require.NoError(t, g.InsertAll(ctx, "users", testfixtures.Collection{user("DOE", "John")}))
	require.NoError(t, g.InsertAll(ctx, "products", testfixtures.Collection{user("X", "Y")}))

	require.NoError(t, g.Clear(ctx, "users"))

	n, err := g.Count(ctx, "users")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = g.Count(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_FileIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.db")

	first, err := Open(path)
	require.NoError(t, err)

	_, err = Open(path)
	require.Error(t, err, "a second run must not open a locked store")

	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestOpen_FilePersistsDocuments(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fixtures.db")

	g, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, g.InsertAll(ctx, "users", testfixtures.Collection{user("WHITE", "Walt")}))
	require.NoError(t, g.Close())

	g, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	n, err := g.Count(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// Clear, Init and Check against the embedded store, declared out of order.
func TestOrchestrator_ClearInitCheck(t *testing.T) {
	ctx := context.Background()
	g := openMemory(t)
	require.NoError(t, g.InsertAll(ctx, "users", testfixtures.Collection{
		user("DOE", "John"), user("DAVIES", "Scott"), user("NORRIS", "Chuck"), user("GATES", "Bill"),
	}))

	o, err := testfixtures.New(g)
	require.NoError(t, err)

	seed := testfixtures.Collection{user("WHITE", "Walt"), user("WHITE", "Skyler")}
	want := append(seed[:2:2], user("PINKMAN", "Jesse"))

	err = o.Run([]testfixtures.Directive{
		testfixtures.Check("users", want),
		testfixtures.Init("users", seed),
		testfixtures.Clear("users"),
	}, func() error {
		n, err := g.Count(ctx, "users")
		require.NoError(t, err)
		assert.Equal(t, 2, n, "body runs after Clear and Init")
		return g.InsertAll(ctx, "users", testfixtures.Collection{user("PINKMAN", "Jesse")})
	})
	require.NoError(t, err)
}
