// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/kinship/internal/platform/dberr"
)

// PostgresStore implements [Store] on a single JSONB table using pgx.
//
// Every statement touches exactly one row. Compare-and-swap is expressed as a
// version predicate in the WHERE clause, so no explicit transaction is needed.
// Deletes only flag the row, so the version keeps increasing across a recreate.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL backed document store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// # Reads

/*
Get retrieves one document by primary key.

Parameters:
  - ctx: context.Context
  - kind: Kind
  - key: string

Returns:
  - Document: Hydrated row
  - bool: false when no row exists
  - error: Database retrieval failures
*/
func (store *PostgresStore) Get(ctx context.Context, kind Kind, key string) (Document, bool, error) {
	const query = `
		SELECT kind, key, version, fields, body, updatedat
		FROM docstore.document
		WHERE kind = $1 AND key = $2 AND NOT deleted
	`
	doc, err := scanDocument(store.db.QueryRow(ctx, query, string(kind), key))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, dberr.Wrap(err, "get_document")
	}
	return doc, true, nil
}

/*
QueryByField returns the documents whose indexed field equals value.

Description: Uses JSONB containment on the fields column so the GIN index applies.

Parameters:
  - ctx: context.Context
  - kind: Kind
  - field, value: string
  - limit: int

Returns:
  - []Document: Matches ordered by key
  - error: Database retrieval failures
*/
func (store *PostgresStore) QueryByField(ctx context.Context, kind Kind, field, value string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	const query = `
		SELECT kind, key, version, fields, body, updatedat
		FROM docstore.document
		WHERE kind = $1 AND NOT deleted AND fields @> jsonb_build_object($2::text, $3::text)
		ORDER BY key ASC
		LIMIT $4
	`
	rows, err := store.db.Query(ctx, query, string(kind), field, value, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "query_documents")
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_document")
		}
		docs = append(docs, doc)
	}

	return docs, dberr.Wrap(rows.Err(), "iterate_documents")
}

// # Writes

/*
Put writes a document under a version precondition.

Description: AnyVersion upserts; MustNotExist inserts or revives a deleted row;
an exact version updates only the live row still carrying that version. A
statement that returns no row means the precondition failed.

Parameters:
  - ctx: context.Context
  - doc: Document
  - expectedVersion: int64

Returns:
  - int64: New version
  - error: ErrConflict or persistence failures
*/
func (store *PostgresStore) Put(ctx context.Context, doc Document, expectedVersion int64) (int64, error) {
	fields := doc.Fields
	if fields == nil {
		fields = map[string]string{}
	}

	var row pgx.Row
	switch expectedVersion {
	case AnyVersion:
		const query = `
			INSERT INTO docstore.document (kind, key, version, fields, body, updatedat)
			VALUES ($1, $2, 1, $3, $4, NOW())
			ON CONFLICT (kind, key) DO UPDATE
			SET version = docstore.document.version + 1,
				fields = EXCLUDED.fields,
				body = EXCLUDED.body,
				deleted = FALSE,
				updatedat = NOW()
			RETURNING version
		`
		row = store.db.QueryRow(ctx, query, string(doc.Kind), doc.Key, fields, doc.Body)

	case MustNotExist:
		const query = `
			INSERT INTO docstore.document (kind, key, version, fields, body, updatedat)
			VALUES ($1, $2, 1, $3, $4, NOW())
			ON CONFLICT (kind, key) DO UPDATE
			SET version = docstore.document.version + 1,
				fields = EXCLUDED.fields,
				body = EXCLUDED.body,
				deleted = FALSE,
				updatedat = NOW()
			WHERE docstore.document.deleted
			RETURNING version
		`
		row = store.db.QueryRow(ctx, query, string(doc.Kind), doc.Key, fields, doc.Body)

	default:
		const query = `
			UPDATE docstore.document
			SET version = version + 1, fields = $3, body = $4, updatedat = NOW()
			WHERE kind = $1 AND key = $2 AND version = $5 AND NOT deleted
			RETURNING version
		`
		row = store.db.QueryRow(ctx, query, string(doc.Kind), doc.Key, fields, doc.Body, expectedVersion)
	}

	var version int64
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrConflict
		}
		return 0, dberr.Wrap(err, "put_document")
	}
	return version, nil
}

/*
Delete removes a document under a version precondition.

Description: The row is kept as a tombstone carrying its last version; its
fields are cleared so it drops out of the GIN index.

Parameters:
  - ctx: context.Context
  - kind: Kind
  - key: string
  - expectedVersion: int64

Returns:
  - error: ErrConflict or persistence failures
*/
func (store *PostgresStore) Delete(ctx context.Context, kind Kind, key string, expectedVersion int64) error {
	switch expectedVersion {
	case AnyVersion:
		const query = `
			UPDATE docstore.document
			SET deleted = TRUE, fields = '{}'::jsonb, body = 'null'::jsonb, updatedat = NOW()
			WHERE kind = $1 AND key = $2 AND NOT deleted
		`
		_, err := store.db.Exec(ctx, query, string(kind), key)
		return dberr.Wrap(err, "delete_document")

	case MustNotExist:
		return ErrConflict

	default:
		const query = `
			UPDATE docstore.document
			SET deleted = TRUE, fields = '{}'::jsonb, body = 'null'::jsonb, updatedat = NOW()
			WHERE kind = $1 AND key = $2 AND version = $3 AND NOT deleted
		`
		result, err := store.db.Exec(ctx, query, string(kind), key, expectedVersion)
		if err != nil {
			return dberr.Wrap(err, "delete_document")
		}
		if result.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	}
}

// Ping implements [Store].
func (store *PostgresStore) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc  Document
		kind string
		body []byte
	)
	if err := row.Scan(&kind, &doc.Key, &doc.Version, &doc.Fields, &body, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Kind = Kind(kind)
	doc.Body = body
	return doc, nil
}
