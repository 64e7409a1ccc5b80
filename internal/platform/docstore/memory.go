// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements [Store] in process memory.
//
// It is the default backend for local development and the backend every engine
// test runs against. Each call is atomic on its own; nothing spans calls.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[Kind]map[string]Document

	// tombstones keeps the last version of deleted documents so a recreated
	// document continues the sequence.
	tombstones map[Kind]map[string]int64

	clock func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:       make(map[Kind]map[string]Document),
		tombstones: make(map[Kind]map[string]int64),
		clock:      time.Now,
	}
}

// Get implements [Store].
func (store *MemoryStore) Get(_ context.Context, kind Kind, key string) (Document, bool, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	doc, ok := store.docs[kind][key]
	if !ok {
		return Document{}, false, nil
	}
	return clone(doc), true, nil
}

// Put implements [Store].
func (store *MemoryStore) Put(_ context.Context, doc Document, expectedVersion int64) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	collection, ok := store.docs[doc.Kind]
	if !ok {
		collection = make(map[string]Document)
		store.docs[doc.Kind] = collection
	}

	current, exists := collection[doc.Key]
	if !matches(exists, current.Version, expectedVersion) {
		return 0, ErrConflict
	}

	previous := current.Version
	if !exists {
		previous = store.tombstones[doc.Kind][doc.Key]
		delete(store.tombstones[doc.Kind], doc.Key)
	}

	stored := clone(doc)
	stored.Version = previous + 1
	stored.UpdatedAt = store.clock()
	collection[doc.Key] = stored

	return stored.Version, nil
}

// Delete implements [Store].
func (store *MemoryStore) Delete(_ context.Context, kind Kind, key string, expectedVersion int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	current, exists := store.docs[kind][key]
	if !exists && expectedVersion == AnyVersion {
		return nil
	}
	if !matches(exists, current.Version, expectedVersion) || !exists {
		return ErrConflict
	}

	delete(store.docs[kind], key)

	graves, ok := store.tombstones[kind]
	if !ok {
		graves = make(map[string]int64)
		store.tombstones[kind] = graves
	}
	graves[key] = current.Version
	return nil
}

// QueryByField implements [Store].
func (store *MemoryStore) QueryByField(_ context.Context, kind Kind, field, value string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	var result []Document
	for _, doc := range store.docs[kind] {
		if v, ok := doc.Fields[field]; ok && v == value {
			result = append(result, clone(doc))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Ping implements [Store].
func (store *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of documents of a kind.
func (store *MemoryStore) Len(kind Kind) int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.docs[kind])
}

// clone copies the mutable parts of a document so callers cannot alias stored state.
func clone(doc Document) Document {
	out := doc
	if doc.Fields != nil {
		out.Fields = make(map[string]string, len(doc.Fields))
		for k, v := range doc.Fields {
			out.Fields[k] = v
		}
	}
	if doc.Body != nil {
		out.Body = append([]byte(nil), doc.Body...)
	}
	return out
}
