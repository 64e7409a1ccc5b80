// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package docstore is the document-store contract every Kinship engine is built on.

The store offers single-document reads and writes, single-field equality queries
and nothing else: there is no multi-document transaction. The only concurrency
primitive is the per-document version, used for compare-and-swap writes.

# Core Responsibility

  - Contract: [Store] with Get, Put, Delete and QueryByField.
  - Concurrency: optimistic writes guarded by an expected version ([ErrConflict]).
  - Backends: [MemoryStore], [PostgresStore] and [RedisStore].

Engines compose these primitives into write-then-compensate sequences and
read-decide-write retry loops (see [RetryOnConflict]).
*/
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// # Preconditions

const (
	// AnyVersion makes a write unconditional.
	AnyVersion int64 = -1

	// MustNotExist makes a Put create-only and a Delete a no-op precondition failure.
	MustNotExist int64 = 0
)

// # Errors

var (
	// ErrConflict is returned when a write's expected version does not match.
	ErrConflict = errors.New("docstore: version conflict")

	// ErrNotFound is returned by helpers that require a document to exist.
	ErrNotFound = errors.New("docstore: document not found")
)

// # Documents

// Kind names a collection of documents.
type Kind string

// Document is a single stored row.
type Document struct {
	Kind Kind
	Key  string

	// Version starts at 1 and increases by one on every successful write. A
	// deleted key keeps its last version, so recreating it continues the sequence.
	Version int64

	// Fields are the scalar values QueryByField can match on.
	Fields map[string]string

	// Body is the JSON encoded entity.
	Body json.RawMessage

	UpdatedAt time.Time
}

// Store is the document-store client consumed by the engines.
type Store interface {

	/*
		Get reads one document.

		Parameters:
		  - ctx: context.Context
		  - kind: Kind
		  - key: string

		Returns:
		  - Document: The stored row (zero value when absent)
		  - bool: Whether the document exists
		  - error: Backend failures only; absence is not an error
	*/
	Get(ctx context.Context, kind Kind, key string) (Document, bool, error)

	/*
		Put writes a document if the stored version matches expectedVersion.

		Parameters:
		  - ctx: context.Context
		  - doc: Document (Kind, Key, Fields and Body are used)
		  - expectedVersion: int64 (AnyVersion, MustNotExist or an exact version)

		Returns:
		  - int64: The new version
		  - error: ErrConflict when the precondition fails
	*/
	Put(ctx context.Context, doc Document, expectedVersion int64) (int64, error)

	/*
		Delete removes a document if the stored version matches expectedVersion.

		Deleting an absent document with AnyVersion succeeds; with an exact
		version it is a conflict.

		Parameters:
		  - ctx: context.Context
		  - kind: Kind
		  - key: string
		  - expectedVersion: int64

		Returns:
		  - error: ErrConflict when the precondition fails
	*/
	Delete(ctx context.Context, kind Kind, key string, expectedVersion int64) error

	/*
		QueryByField returns documents whose field equals value, ordered by key.

		Parameters:
		  - ctx: context.Context
		  - kind: Kind
		  - field: string
		  - value: string
		  - limit: int (non-positive means DefaultQueryLimit)

		Returns:
		  - []Document: Matching documents
		  - error: Backend failures
	*/
	QueryByField(ctx context.Context, kind Kind, field, value string, limit int) ([]Document, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// DefaultQueryLimit bounds QueryByField when the caller passes no limit.
const DefaultQueryLimit = 1000

// # Encoding Helpers

// Encode builds a Document from an entity value.
func Encode(kind Kind, key string, entity any, fields map[string]string) (Document, error) {
	body, err := json.Marshal(entity)
	if err != nil {
		return Document{}, fmt.Errorf("docstore: encode %s/%s: %w", kind, key, err)
	}
	return Document{Kind: kind, Key: key, Fields: fields, Body: body}, nil
}

// Decode unmarshals the document body into target.
func Decode(doc Document, target any) error {
	if err := json.Unmarshal(doc.Body, target); err != nil {
		return fmt.Errorf("docstore: decode %s/%s: %w", doc.Kind, doc.Key, err)
	}
	return nil
}

// Load reads and decodes one document.
//
// It returns the stored version, or [MustNotExist] with found=false when the
// document is absent, so the result can be fed straight into a CAS write.
func Load[T any](ctx context.Context, store Store, kind Kind, key string) (entity T, version int64, found bool, err error) {
	doc, found, err := store.Get(ctx, kind, key)
	if err != nil || !found {
		return entity, MustNotExist, false, err
	}
	if err := Decode(doc, &entity); err != nil {
		return entity, MustNotExist, false, err
	}
	return entity, doc.Version, true, nil
}

// Save encodes entity and writes it with the given precondition.
func Save(ctx context.Context, store Store, kind Kind, key string, entity any, fields map[string]string, expectedVersion int64) (int64, error) {
	doc, err := Encode(kind, key, entity, fields)
	if err != nil {
		return 0, err
	}
	return store.Put(ctx, doc, expectedVersion)
}

// Query runs QueryByField and decodes every match.
func Query[T any](ctx context.Context, store Store, kind Kind, field, value string, limit int) ([]T, error) {
	docs, err := store.QueryByField(ctx, kind, field, value, limit)
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := Decode(doc, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// matches reports whether a stored version satisfies a precondition.
func matches(exists bool, stored, expected int64) bool {
	switch {
	case expected == AnyVersion:
		return true
	case expected == MustNotExist:
		return !exists
	default:
		return exists && stored == expected
	}
}
