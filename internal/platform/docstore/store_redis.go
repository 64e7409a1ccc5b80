// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hash fields of a stored document.
const (
	hashVersion   = "v"
	hashFields    = "f"
	hashBody      = "b"
	hashUpdatedAt = "t"
	hashDeleted   = "d"
)

// RedisStore implements [Store] on Redis hashes.
//
// Each document is one hash. Every indexed field value is mirrored in a set so
// QueryByField is a set lookup. Writes run inside WATCH/MULTI on the document
// key, which gives the per-document compare-and-swap the engines need. A delete
// shrinks the hash to its version and a tombstone marker so a recreated
// document continues the version sequence.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed document store. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// docKey returns the hash key of a document, e.g. "kinship:doc:friend_edge:u1:u2".
func (store *RedisStore) docKey(kind Kind, key string) string {
	return fmt.Sprintf("%sdoc:%s:%s", store.prefix, kind, key)
}

// indexKey returns the set key listing documents whose field equals value.
func (store *RedisStore) indexKey(kind Kind, field, value string) string {
	return fmt.Sprintf("%sidx:%s:%s:%s", store.prefix, kind, field, value)
}

/*
Get retrieves one document hash.

Parameters:
  - ctx: context.Context
  - kind: Kind
  - key: string

Returns:
  - Document: Hydrated row
  - bool: false when the hash does not exist
  - error: Connectivity errors
*/
func (store *RedisStore) Get(ctx context.Context, kind Kind, key string) (Document, bool, error) {
	values, err := store.client.HGetAll(ctx, store.docKey(kind, key)).Result()
	if err != nil {
		return Document{}, false, fmt.Errorf("redis_document_get_failed: %w", err)
	}
	if len(values) == 0 || values[hashDeleted] != "" {
		return Document{}, false, nil
	}

	doc, err := decodeHash(kind, key, values)
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

/*
Put writes a document hash under a version precondition.

Description: The version check and the write happen inside WATCH/MULTI on the
document key. A concurrent writer aborts the transaction, which is reported as
ErrConflict. Index sets are updated in the same MULTI block.

Parameters:
  - ctx: context.Context
  - doc: Document
  - expectedVersion: int64

Returns:
  - int64: New version
  - error: ErrConflict or connectivity errors
*/
func (store *RedisStore) Put(ctx context.Context, doc Document, expectedVersion int64) (int64, error) {
	docKey := store.docKey(doc.Kind, doc.Key)

	fieldsJSON, err := json.Marshal(doc.Fields)
	if err != nil {
		return 0, fmt.Errorf("redis_document_encode_failed: %w", err)
	}

	var version int64
	transaction := func(tx *redis.Tx) error {
		current, exists, err := store.readHeader(ctx, tx, docKey)
		if err != nil {
			return err
		}
		if !matches(exists, current.version, expectedVersion) {
			return ErrConflict
		}

		version = current.version + 1

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, docKey, hashDeleted)
			pipe.HSet(ctx, docKey,
				hashVersion, version,
				hashFields, string(fieldsJSON),
				hashBody, string(doc.Body),
				hashUpdatedAt, time.Now().UnixNano(),
			)
			for field, value := range current.fields {
				pipe.SRem(ctx, store.indexKey(doc.Kind, field, value), doc.Key)
			}
			for field, value := range doc.Fields {
				pipe.SAdd(ctx, store.indexKey(doc.Kind, field, value), doc.Key)
			}
			return nil
		})
		return err
	}

	if err := store.client.Watch(ctx, transaction, docKey); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, redis.TxFailedErr) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("redis_document_put_failed: %w", err)
	}

	return version, nil
}

/*
Delete tombstones a document hash and removes its index entries under a version precondition.

Parameters:
  - ctx: context.Context
  - kind: Kind
  - key: string
  - expectedVersion: int64

Returns:
  - error: ErrConflict or connectivity errors
*/
func (store *RedisStore) Delete(ctx context.Context, kind Kind, key string, expectedVersion int64) error {
	docKey := store.docKey(kind, key)

	transaction := func(tx *redis.Tx) error {
		current, exists, err := store.readHeader(ctx, tx, docKey)
		if err != nil {
			return err
		}
		if !exists {
			if expectedVersion == AnyVersion {
				return nil
			}
			return ErrConflict
		}
		if !matches(exists, current.version, expectedVersion) {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, docKey, hashFields, hashBody)
			pipe.HSet(ctx, docKey, hashDeleted, "1", hashUpdatedAt, time.Now().UnixNano())
			for field, value := range current.fields {
				pipe.SRem(ctx, store.indexKey(kind, field, value), key)
			}
			return nil
		})
		return err
	}

	if err := store.client.Watch(ctx, transaction, docKey); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, redis.TxFailedErr) {
			return ErrConflict
		}
		return fmt.Errorf("redis_document_delete_failed: %w", err)
	}
	return nil
}

/*
QueryByField lists the documents indexed under field=value.

Parameters:
  - ctx: context.Context
  - kind: Kind
  - field, value: string
  - limit: int

Returns:
  - []Document: Matches ordered by key
  - error: Connectivity errors
*/
func (store *RedisStore) QueryByField(ctx context.Context, kind Kind, field, value string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	keys, err := store.client.SMembers(ctx, store.indexKey(kind, field, value)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_document_query_failed: %w", err)
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	if len(keys) == 0 {
		return nil, nil
	}

	// Fetch all hashes in one round trip
	commands := make([]*redis.MapStringStringCmd, len(keys))
	_, err = store.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			commands[i] = pipe.HGetAll(ctx, store.docKey(kind, key))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis_document_query_failed: %w", err)
	}

	docs := make([]Document, 0, len(keys))
	for i, command := range commands {
		values := command.Val()
		if len(values) == 0 || values[hashDeleted] != "" {
			continue
		}
		doc, err := decodeHash(kind, keys[i], values)
		if err != nil {
			return nil, err
		}
		if doc.Fields[field] != value {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Ping implements [Store].
func (store *RedisStore) Ping(ctx context.Context) error {
	return store.client.Ping(ctx).Err()
}

// # Hash Codec

type header struct {
	version int64
	fields  map[string]string
}

// readHeader loads the version and indexed fields of a watched document.
// A tombstone reports exists=false but still carries its last version.
func (store *RedisStore) readHeader(ctx context.Context, tx *redis.Tx, docKey string) (header, bool, error) {
	values, err := tx.HMGet(ctx, docKey, hashVersion, hashFields, hashDeleted).Result()
	if err != nil {
		return header{}, false, fmt.Errorf("redis_document_read_failed: %w", err)
	}
	if len(values) < 3 || values[0] == nil {
		return header{}, false, nil
	}

	raw, _ := values[0].(string)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return header{}, false, fmt.Errorf("redis_document_version_corrupt: %w", err)
	}

	current := header{version: version}
	if values[2] != nil {
		return current, false, nil
	}
	if rawFields, ok := values[1].(string); ok && rawFields != "" {
		if err := json.Unmarshal([]byte(rawFields), &current.fields); err != nil {
			return header{}, false, fmt.Errorf("redis_document_fields_corrupt: %w", err)
		}
	}
	return current, true, nil
}

func decodeHash(kind Kind, key string, values map[string]string) (Document, error) {
	version, err := strconv.ParseInt(values[hashVersion], 10, 64)
	if err != nil {
		return Document{}, fmt.Errorf("redis_document_version_corrupt: %w", err)
	}

	doc := Document{
		Kind:    kind,
		Key:     key,
		Version: version,
		Body:    json.RawMessage(values[hashBody]),
	}
	if raw := values[hashFields]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &doc.Fields); err != nil {
			return Document{}, fmt.Errorf("redis_document_fields_corrupt: %w", err)
		}
	}
	if nanos, err := strconv.ParseInt(values[hashUpdatedAt], 10, 64); err == nil {
		doc.UpdatedAt = time.Unix(0, nanos)
	}
	return doc, nil
}
