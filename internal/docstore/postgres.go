package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/viewtube/backend/internal/db"
	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/pipeline"
)

// collectionNamePattern guards table identifiers built from collection names.
var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// PostgresStore persists each collection as a (id, doc JSONB) table and
// compiles aggregation pipelines into chained common table expressions.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore constructs a document store backed by PostgreSQL.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	if pool == nil {
		panic("docstore: pool must not be nil")
	}
	return &PostgresStore{pool: pool}
}

// CollectionSchema declares a collection and the fields kept unique by index.
type CollectionSchema struct {
	Name   string
	Unique []string
}

// Ensure creates the collection tables and unique indexes when absent.
func (s *PostgresStore) Ensure(ctx context.Context, schemas []CollectionSchema) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	for _, schema := range schemas {
		if !collectionNamePattern.MatchString(schema.Name) {
			return fmt.Errorf("invalid collection name %q", schema.Name)
		}
		if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
                        id TEXT PRIMARY KEY,
                        doc JSONB NOT NULL
                )`, schema.Name)); err != nil {
			return fmt.Errorf("ensure collection %s: %w", schema.Name, err)
		}
		for _, field := range schema.Unique {
			if !collectionNamePattern.MatchString(field) {
				return fmt.Errorf("invalid unique field %q on %s", field, schema.Name)
			}
			index := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_%s_key ON %s ((doc->>'%s'))`,
				schema.Name, field, schema.Name, field)
			if _, err := conn.Exec(ctx, index); err != nil {
				return fmt.Errorf("ensure unique index %s.%s: %w", schema.Name, field, err)
			}
		}
	}
	return nil
}

// Collection returns a handle for the named collection. The name must
// be a known lowercase identifier; anything else is a programming error.
func (s *PostgresStore) Collection(name string) Collection {
	if !collectionNamePattern.MatchString(name) {
		panic(fmt.Sprintf("docstore: invalid collection name %q", name))
	}
	return &postgresCollection{pool: s.pool, name: name}
}

type postgresCollection struct {
	pool db.Pool
	name string
}

func (c *postgresCollection) InsertOne(ctx context.Context, doc Document) error {
	id, _ := doc["_id"].(string)
	if id == "" {
		return errors.New("document requires a string _id")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, c.name), id, raw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert into %s: %w", c.name, err)
	}
	return nil
}

func (c *postgresCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	builder := newArgBuilder()
	where := compileFilter(builder, "doc", filter)

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s LIMIT 1`, c.name, where)
	var raw []byte
	if err := conn.QueryRow(ctx, query, builder.args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select from %s: %w", c.name, err)
	}
	return unmarshalDocument(raw)
}

func (c *postgresCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (Document, error) {
	builder := newArgBuilder()
	expr, err := compileUpdate(builder, update)
	if err != nil {
		return nil, err
	}
	where := compileFilter(builder, "doc", filter)

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	query := fmt.Sprintf(`UPDATE %s SET doc = %s
                WHERE id = (SELECT id FROM %s WHERE %s LIMIT 1)
                RETURNING doc`, c.name, expr, c.name, where)
	var raw []byte
	if err := conn.QueryRow(ctx, query, builder.args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update %s: %w", c.name, err)
	}
	return unmarshalDocument(raw)
}

func (c *postgresCollection) DeleteOne(ctx context.Context, filter Filter) (Document, error) {
	builder := newArgBuilder()
	where := compileFilter(builder, "doc", filter)

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	query := fmt.Sprintf(`DELETE FROM %s
                WHERE id = (SELECT id FROM %s WHERE %s LIMIT 1)
                RETURNING doc`, c.name, c.name, where)
	var raw []byte
	if err := conn.QueryRow(ctx, query, builder.args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete from %s: %w", c.name, err)
	}
	return unmarshalDocument(raw)
}

func (c *postgresCollection) Aggregate(ctx context.Context, p pipeline.Pipeline) ([]Document, error) {
	ctx, span := logging.StartSpan(ctx, "docstore.aggregate")
	defer span.End()

	query, args, err := compilePipeline(c.name, p)
	if err != nil {
		return nil, err
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", c.name, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		doc, err := unmarshalDocument(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}
	return out, nil
}

func unmarshalDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// argBuilder numbers query placeholders as the compiler emits them.
type argBuilder struct {
	args []any
}

func newArgBuilder() *argBuilder {
	return &argBuilder{}
}

func (b *argBuilder) add(value any) string {
	b.args = append(b.args, value)
	return "$" + strconv.Itoa(len(b.args))
}

// compileFilter renders field-equality conditions against a JSONB column.
func compileFilter(b *argBuilder, column string, filter Filter) string {
	if len(filter) == 0 {
		return "TRUE"
	}
	conds := make([]string, 0, len(filter))
	for _, field := range sortedKeys(filter) {
		path := b.add(pipeline.SplitPath(field))
		value := b.add(filterText(filter[field]))
		conds = append(conds, fmt.Sprintf("%s #>> %s = %s", column, path, value))
	}
	return strings.Join(conds, " AND ")
}

func filterText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// compileUpdate folds the update operations into a single JSONB expression.
func compileUpdate(b *argBuilder, update Update) (string, error) {
	if update.IsZero() {
		return "", errors.New("empty update")
	}

	expr := "doc"
	for _, field := range sortedKeys(update.Set) {
		raw, err := json.Marshal(update.Set[field])
		if err != nil {
			return "", fmt.Errorf("marshal set value for %s: %w", field, err)
		}
		path := b.add(pipeline.SplitPath(field))
		value := b.add(string(raw))
		expr = fmt.Sprintf("jsonb_set(%s, %s, %s::jsonb, true)", expr, path, value)
	}
	for _, field := range update.Unset {
		expr = fmt.Sprintf("(%s - %s::text)", expr, b.add(field))
	}
	for _, field := range sortedKeys(update.Push) {
		raw, err := json.Marshal(update.Push[field])
		if err != nil {
			return "", fmt.Errorf("marshal push value for %s: %w", field, err)
		}
		path := b.add(pipeline.SplitPath(field))
		value := b.add(string(raw))
		expr = fmt.Sprintf("jsonb_set(%s, %s, coalesce((%s) #> %s, '[]'::jsonb) || %s::jsonb, true)",
			expr, path, expr, path, value)
	}
	for _, field := range sortedKeys(update.AddToSet) {
		raw, err := json.Marshal(update.AddToSet[field])
		if err != nil {
			return "", fmt.Errorf("marshal addToSet value for %s: %w", field, err)
		}
		path := b.add(pipeline.SplitPath(field))
		value := b.add(string(raw))
		expr = fmt.Sprintf(`(CASE WHEN coalesce((%s) #> %s, '[]'::jsonb) @> %s::jsonb THEN (%s)
                        ELSE jsonb_set(%s, %s, coalesce((%s) #> %s, '[]'::jsonb) || %s::jsonb, true) END)`,
			expr, path, value, expr, expr, path, expr, path, value)
	}
	for _, field := range sortedKeys(update.Pull) {
		raw, err := json.Marshal(update.Pull[field])
		if err != nil {
			return "", fmt.Errorf("marshal pull value for %s: %w", field, err)
		}
		path := b.add(pipeline.SplitPath(field))
		value := b.add(string(raw))
		expr = fmt.Sprintf(`jsonb_set(%s, %s, (SELECT coalesce(jsonb_agg(e.value), '[]'::jsonb)
                        FROM jsonb_array_elements(coalesce((%s) #> %s, '[]'::jsonb)) e(value)
                        WHERE e.value <> %s::jsonb), true)`,
			expr, path, expr, path, value)
	}
	return expr, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	// map iteration order must not leak into placeholder numbering
	sort.Strings(keys)
	return keys
}
