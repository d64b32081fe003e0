package docstore

import (
	"fmt"
	"strings"

	"github.com/viewtube/backend/internal/pipeline"
)

// compilePipeline renders a pipeline as a chain of common table
// expressions over the collection table. Every intermediate expression
// carries the working document plus an ordering key so stage order,
// skip, and limit stay deterministic across the whole chain.
func compilePipeline(table string, p pipeline.Pipeline) (string, []any, error) {
	b := newArgBuilder()

	ctes := []string{fmt.Sprintf(
		"s0 AS (SELECT doc, row_number() OVER (ORDER BY doc->>'createdAt', id) AS ord FROM %s)", table)}

	terminal := ""
	for i, stage := range p {
		if terminal != "" {
			return "", nil, fmt.Errorf("pipeline stage %T after terminal stage", stage)
		}
		prev := fmt.Sprintf("s%d", i)
		name := fmt.Sprintf("s%d", i+1)

		body, isTerminal, err := compileStage(b, prev, stage)
		if err != nil {
			return "", nil, err
		}
		if isTerminal {
			terminal = body
			continue
		}
		ctes = append(ctes, fmt.Sprintf("%s AS (%s)", name, body))
	}

	last := fmt.Sprintf("s%d", len(ctes)-1)
	final := fmt.Sprintf("SELECT doc FROM %s ORDER BY ord", last)
	if terminal != "" {
		final = strings.ReplaceAll(terminal, "{{last}}", last)
	}

	query := "WITH " + strings.Join(ctes, ",\n") + "\n" + final
	return query, b.args, nil
}

func compileStage(b *argBuilder, prev string, stage pipeline.Stage) (string, bool, error) {
	switch st := stage.(type) {
	case pipeline.Match:
		conds := []string{compileFilter(b, "doc", st.Filter)}
		for _, field := range st.Exists {
			conds = append(conds, fmt.Sprintf("jsonb_exists(doc, %s)", b.add(field)))
		}
		return fmt.Sprintf("SELECT doc, ord FROM %s WHERE %s", prev, strings.Join(conds, " AND ")), false, nil

	case pipeline.Skip:
		return fmt.Sprintf("SELECT doc, ord FROM %s ORDER BY ord OFFSET %s", prev, b.add(st.N)), false, nil

	case pipeline.Limit:
		return fmt.Sprintf("SELECT doc, ord FROM %s ORDER BY ord LIMIT %s", prev, b.add(st.N)), false, nil

	case pipeline.Sort:
		direction := "ASC"
		if st.Desc {
			direction = "DESC"
		}
		return fmt.Sprintf(
			"SELECT doc, row_number() OVER (ORDER BY doc #>> %s %s, ord) AS ord FROM %s",
			b.add(pipeline.SplitPath(st.Field)), direction, prev), false, nil

	case pipeline.Lookup:
		if !collectionNamePattern.MatchString(st.From) {
			return "", false, fmt.Errorf("invalid lookup collection %q", st.From)
		}
		foreignDoc := "f.doc"
		if len(st.Project) > 0 {
			foreignDoc = fmt.Sprintf(
				"(SELECT coalesce(jsonb_object_agg(key, value), '{}'::jsonb) FROM jsonb_each(f.doc) WHERE key = ANY(%s))",
				b.add(st.Project))
		}
		join := fmt.Sprintf(
			"(SELECT coalesce(jsonb_agg(%s ORDER BY f.doc->>'createdAt', f.id), '[]'::jsonb) FROM %s f WHERE f.doc #>> %s = t.doc #>> %s)",
			foreignDoc, st.From,
			b.add(pipeline.SplitPath(st.ForeignField)),
			b.add(pipeline.SplitPath(st.LocalField)))
		return fmt.Sprintf(
			"SELECT jsonb_set(t.doc, %s, %s, true) AS doc, t.ord FROM %s t",
			b.add(pipeline.SplitPath(st.As)), join, prev), false, nil

	case pipeline.Unwind:
		path := b.add(pipeline.SplitPath(st.Field))
		return fmt.Sprintf(
			`SELECT jsonb_set(t.doc, %s, e.value, true) AS doc,
                                row_number() OVER (ORDER BY t.ord, e.idx) AS ord
                        FROM %s t
                        CROSS JOIN LATERAL jsonb_array_elements(
                                CASE WHEN jsonb_typeof(t.doc #> %s) = 'array' THEN t.doc #> %s ELSE '[]'::jsonb END
                        ) WITH ORDINALITY AS e(value, idx)`,
			path, prev, path, path), false, nil

	case pipeline.Flatten:
		path := b.add(pipeline.SplitPath(st.Field))
		return fmt.Sprintf(
			`SELECT CASE
                                WHEN jsonb_typeof(doc #> %s) = 'array' AND jsonb_array_length(doc #> %s) > 0
                                        THEN jsonb_set(doc, %s, (doc #> %s) -> 0, true)
                                WHEN jsonb_typeof(doc #> %s) = 'array'
                                        THEN doc #- %s
                                ELSE doc
                        END AS doc, ord FROM %s`,
			path, path, path, path, path, path, prev), false, nil

	case pipeline.AddCount:
		field := b.add(pipeline.SplitPath(st.Field))
		of := b.add(pipeline.SplitPath(st.Of))
		return fmt.Sprintf(
			`SELECT jsonb_set(doc, %s, to_jsonb(
                                CASE WHEN jsonb_typeof(doc #> %s) = 'array' THEN jsonb_array_length(doc #> %s) ELSE 0 END
                        ), true) AS doc, ord FROM %s`,
			field, of, of, prev), false, nil

	case pipeline.Contains:
		field := b.add(pipeline.SplitPath(st.Field))
		in := b.add(pipeline.SplitPath(st.In))
		key := b.add(pipeline.SplitPath(st.Key))
		value := b.add(filterText(st.Value))
		return fmt.Sprintf(
			`SELECT jsonb_set(doc, %s, to_jsonb(EXISTS (
                                SELECT 1 FROM jsonb_array_elements(
                                        CASE WHEN jsonb_typeof(doc #> %s) = 'array' THEN doc #> %s ELSE '[]'::jsonb END
                                ) e(value) WHERE e.value #>> %s = %s
                        )), true) AS doc, ord FROM %s`,
			field, in, in, key, value, prev), false, nil

	case pipeline.Set:
		field := b.add(pipeline.SplitPath(st.Field))
		from := b.add(pipeline.SplitPath(st.From))
		return fmt.Sprintf(
			`SELECT CASE WHEN doc #> %s IS NOT NULL
                                THEN jsonb_set(doc, %s, doc #> %s, true)
                                ELSE doc
                        END AS doc, ord FROM %s`,
			from, field, from, prev), false, nil

	case pipeline.ReplaceRoot:
		path := b.add(pipeline.SplitPath(st.Field))
		return fmt.Sprintf(
			"SELECT doc #> %s AS doc, ord FROM %s WHERE jsonb_typeof(doc #> %s) = 'object'",
			path, prev, path), false, nil

	case pipeline.Project:
		if len(st.Include) > 0 {
			return fmt.Sprintf(
				"SELECT (SELECT coalesce(jsonb_object_agg(key, value), '{}'::jsonb) FROM jsonb_each(doc) WHERE key = ANY(%s)) AS doc, ord FROM %s",
				b.add(st.Include), prev), false, nil
		}
		return fmt.Sprintf("SELECT doc - %s AS doc, ord FROM %s", b.add(st.Exclude), prev), false, nil

	case pipeline.Count:
		return fmt.Sprintf("SELECT jsonb_build_object(%s::text, count(*)) AS doc FROM {{last}}", b.add(st.As)), true, nil

	case pipeline.Sum:
		return fmt.Sprintf(
			"SELECT jsonb_build_object(%s::text, coalesce(sum((doc #>> %s)::numeric), 0)) AS doc FROM {{last}}",
			b.add(st.As), b.add(pipeline.SplitPath(st.Field))), true, nil

	default:
		return "", false, fmt.Errorf("pipeline stage %T not supported by the postgres engine", stage)
	}
}
