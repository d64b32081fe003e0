package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viewtube/backend/internal/pipeline"
)

var testPool *pgxpool.Pool

// TestMain starts a throwaway cockroach server for the Postgres engine
// tests. When the binary is unavailable those tests skip instead of
// failing, so the in-memory engine tests in this package still run.
func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v (skipping postgres engine tests)\n", err)
		os.Exit(m.Run())
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v (skipping postgres engine tests)\n", err)
		server.Stop()
		os.Exit(m.Run())
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func ensureCollections(t *testing.T, schemas ...CollectionSchema) *PostgresStore {
	t.Helper()
	if testPool == nil {
		t.Skip("cockroach test server unavailable")
	}
	store := NewPostgresStore(testPool)
	if err := store.Ensure(context.Background(), schemas); err != nil {
		t.Fatalf("ensure collections: %v", err)
	}
	return store
}

func TestPostgresStoreInsertFindDelete(t *testing.T) {
	ctx := context.Background()
	store := ensureCollections(t, CollectionSchema{Name: "it_accounts", Unique: []string{"username"}})
	accounts := store.Collection("it_accounts")

	doc := Document{"_id": "u1", "username": "alice", "fullName": "Alice A", "createdAt": "2026-01-01T00:00:00Z"}
	if err := accounts.InsertOne(ctx, doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	dup := Document{"_id": "u2", "username": "alice", "createdAt": "2026-01-01T00:00:01Z"}
	if err := accounts.InsertOne(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	fetched, err := accounts.FindOne(ctx, Filter{"username": "alice"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fetched["_id"] != "u1" || fetched["fullName"] != "Alice A" {
		t.Fatalf("unexpected document %v", fetched)
	}

	if _, err := accounts.FindOne(ctx, Filter{"username": "nobody"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	deleted, err := accounts.DeleteOne(ctx, Filter{"_id": "u1"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted["username"] != "alice" {
		t.Fatalf("expected deleted document returned, got %v", deleted)
	}
	if _, err := accounts.DeleteOne(ctx, Filter{"_id": "u1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestPostgresStoreUpdateOperations(t *testing.T) {
	ctx := context.Background()
	store := ensureCollections(t, CollectionSchema{Name: "it_profiles"})
	profiles := store.Collection("it_profiles")

	doc := Document{
		"_id":       "p1",
		"name":      "before",
		"session":   "tok-1",
		"tags":      []any{"a"},
		"createdAt": "2026-01-01T00:00:00Z",
	}
	if err := profiles.InsertOne(ctx, doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated, err := profiles.UpdateOne(ctx, Filter{"_id": "p1"}, Update{
		Set:   map[string]any{"name": "after"},
		Unset: []string{"session"},
		Push:  map[string]any{"tags": "b"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["name"] != "after" {
		t.Fatalf("expected set applied, got %v", updated["name"])
	}
	if _, ok := updated["session"]; ok {
		t.Fatal("expected session unset")
	}
	tags, ok := updated["tags"].([]any)
	if !ok || len(tags) != 2 || tags[1] != "b" {
		t.Fatalf("expected pushed tag, got %v", updated["tags"])
	}

	// AddToSet is idempotent; Pull removes every equal element.
	updated, err = profiles.UpdateOne(ctx, Filter{"_id": "p1"}, Update{
		AddToSet: map[string]any{"tags": "b"},
	})
	if err != nil {
		t.Fatalf("addToSet: %v", err)
	}
	if tags, _ := updated["tags"].([]any); len(tags) != 2 {
		t.Fatalf("expected addToSet to skip present element, got %v", updated["tags"])
	}

	updated, err = profiles.UpdateOne(ctx, Filter{"_id": "p1"}, Update{
		Pull: map[string]any{"tags": "a"},
	})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if tags, _ := updated["tags"].([]any); len(tags) != 1 || tags[0] != "b" {
		t.Fatalf("expected only b left, got %v", updated["tags"])
	}

	if _, err := profiles.UpdateOne(ctx, Filter{"_id": "missing"}, Update{Set: map[string]any{"name": "x"}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing document, got %v", err)
	}
}

func TestPostgresStoreAggregatePagination(t *testing.T) {
	ctx := context.Background()
	store := ensureCollections(t, CollectionSchema{Name: "it_posts"})
	posts := store.Collection("it_posts")

	for i := 0; i < 23; i++ {
		doc := Document{
			"_id":       fmt.Sprintf("post-%02d", i),
			"owner":     "u1",
			"views":     float64(i),
			"createdAt": fmt.Sprintf("2026-01-01T00:00:%02dZ", i),
		}
		if err := posts.InsertOne(ctx, doc); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	seen := make(map[any]bool)
	for page := 1; ; page++ {
		docs, err := posts.Aggregate(ctx, pipeline.Pipeline{
			pipeline.Match{Filter: map[string]any{"owner": "u1"}},
			pipeline.Sort{Field: "createdAt"},
		}.Paginate(pipeline.Page{Number: page}))
		if err != nil {
			t.Fatalf("aggregate page %d: %v", page, err)
		}
		if len(docs) == 0 {
			break
		}
		for _, doc := range docs {
			if seen[doc["_id"]] {
				t.Fatalf("document %v appeared twice", doc["_id"])
			}
			seen[doc["_id"]] = true
		}
		if page > 3 {
			t.Fatalf("expected 3 pages, still receiving documents on page %d", page)
		}
	}
	if len(seen) != 23 {
		t.Fatalf("expected all 23 documents across pages, got %d", len(seen))
	}
}

func TestPostgresStoreAggregateTerminalStages(t *testing.T) {
	ctx := context.Background()
	store := ensureCollections(t, CollectionSchema{Name: "it_metrics"})
	metrics := store.Collection("it_metrics")

	for i := 1; i <= 4; i++ {
		doc := Document{
			"_id":       fmt.Sprintf("m%d", i),
			"owner":     "u1",
			"views":     float64(i * 10),
			"createdAt": fmt.Sprintf("2026-01-01T00:00:0%dZ", i),
		}
		if err := metrics.InsertOne(ctx, doc); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	counted, err := metrics.Aggregate(ctx, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"owner": "u1"}},
		pipeline.Count{As: "n"},
	})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if len(counted) != 1 || counted[0]["n"] != float64(4) {
		t.Fatalf("expected count 4, got %v", counted)
	}

	summed, err := metrics.Aggregate(ctx, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"owner": "u1"}},
		pipeline.Sum{As: "total", Field: "views"},
	})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if len(summed) != 1 || summed[0]["total"] != float64(100) {
		t.Fatalf("expected sum 100, got %v", summed)
	}
}
